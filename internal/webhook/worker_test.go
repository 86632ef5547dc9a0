package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const claimSQL = `UPDATE notification_queue\s+SET status = 'delivering'`

func queueRows(id uuid.UUID, attempts, maxAttempts int) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "event_type", "payload", "attempts", "max_attempts"}).
		AddRow(id, EventInfractionReported, []byte(`{"type":"infraction.reported"}`), attempts, maxAttempts)
}

func emptyQueue() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "event_type", "payload", "attempts", "max_attempts"})
}

func TestWorker_ProcessQueue(t *testing.T) {
	jobID := uuid.New()

	tests := []struct {
		name      string
		status    int
		attempts  int
		mockSetup func(mock pgxmock.PgxPoolIface)
	}{
		{
			name:     "delivered",
			status:   http.StatusOK,
			attempts: 0,
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE notification_queue\s+SET status = 'delivered'`).
					WithArgs(jobID).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name:     "retry scheduled",
			status:   http.StatusServiceUnavailable,
			attempts: 1,
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE notification_queue\s+SET attempts = attempts \+ 1`).
					WithArgs(pgxmock.AnyArg(), "deliver webhook: HTTP 503", jobID).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name:     "attempts exhausted",
			status:   http.StatusServiceUnavailable,
			attempts: 4,
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE notification_queue\s+SET status = 'failed'`).
					WithArgs("deliver webhook: HTTP 503", jobID).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, EventInfractionReported, r.Header.Get("X-Proctor-Event"))
				assert.NotEmpty(t, r.Header.Get(SignatureHeader))
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectQuery(claimSQL).
				WithArgs(defaultBatchSize).
				WillReturnRows(queueRows(jobID, tt.attempts, 5))
			tt.mockSetup(mock)

			svc := NewService(Endpoint{URL: server.URL, Secret: "s"}, WithLogger(discardLogger()))
			worker := NewWorker(mock, svc, discardLogger())

			n, err := worker.processQueue(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWorker_ProcessQueue_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(claimSQL).
		WithArgs(defaultBatchSize).
		WillReturnError(assert.AnError)

	worker := NewWorker(mock, NewService(Endpoint{}), discardLogger())

	_, err = worker.processQueue(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestWorker_Flush(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	first, second := uuid.New(), uuid.New()

	// a full batch means there may be more; a short one ends the flush
	mock.ExpectQuery(claimSQL).WithArgs(1).WillReturnRows(queueRows(first, 0, 5))
	mock.ExpectExec(`SET status = 'delivered'`).WithArgs(first).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(claimSQL).WithArgs(1).WillReturnRows(queueRows(second, 2, 5))
	mock.ExpectExec(`SET status = 'delivered'`).WithArgs(second).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(claimSQL).WithArgs(1).WillReturnRows(emptyQueue())

	svc := NewService(Endpoint{URL: server.URL, Secret: "s"}, WithLogger(discardLogger()))
	worker := NewWorker(mock, svc, discardLogger(), WithBatchSize(1))

	require.NoError(t, worker.Flush(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorker_Flush_CanceledContext(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker := NewWorker(mock, NewService(Endpoint{}), discardLogger())
	assert.ErrorIs(t, worker.Flush(ctx), context.Canceled)
}

func TestWorker_Backoff(t *testing.T) {
	worker := NewWorker(nil, NewService(Endpoint{}), discardLogger(), WithMaxBackoff(10*time.Second))

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 0, want: time.Second},
		{attempts: 1, want: 2 * time.Second},
		{attempts: 3, want: 8 * time.Second},
		{attempts: 4, want: 10 * time.Second},
		{attempts: 62, want: 10 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, worker.backoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestWorker_RunStops(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	worker := NewWorker(mock, NewService(Endpoint{}), discardLogger())

	done := make(chan struct{})
	go func() {
		worker.Run(context.Background())
		close(done)
	}()

	worker.Stop()
	<-done

	assert.NotPanics(t, worker.Stop)
}
