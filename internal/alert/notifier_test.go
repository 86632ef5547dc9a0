package alert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

func testIncident() domain.Incident {
	return domain.Incident{
		ID:         uuid.New(),
		SessionID:  uuid.New(),
		Identity:   "Alice",
		Type:       domain.ClassPhone,
		Subject:    "Math",
		Confidence: 0.42,
		DetectedAt: time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC),
		Image:      []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3},
	}
}

type fakeNotifier struct {
	err   error
	calls int
}

func (f *fakeNotifier) Notify(ctx context.Context, incident domain.Incident) error {
	f.calls++
	return f.err
}

func TestSubject(t *testing.T) {
	tests := []struct {
		typ  domain.Class
		want string
	}{
		{domain.ClassPhone, "Phone Alert: Alice Detected"},
		{domain.ClassCheating, "Cheating Alert: Alice Detected"},
	}

	for _, tt := range tests {
		incident := testIncident()
		incident.Type = tt.typ
		assert.Equal(t, tt.want, Subject(incident))
	}
}

func TestBody(t *testing.T) {
	body := Body(testIncident())

	assert.Contains(t, body, "Alice was detected with a phone")
	assert.Contains(t, body, "confidence 0.42")
	assert.Contains(t, body, "during Math at 2024-03-09 10:30:00")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.Notify(context.Background(), testIncident()))

	assert.Contains(t, buf.String(), `"msg":"Phone Alert: Alice Detected"`)
	assert.Contains(t, buf.String(), `"image_bytes":7`)
}

func TestMulti(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := &fakeNotifier{}
	failing := &fakeNotifier{err: errors.New("smtp down")}
	last := &fakeNotifier{}

	err := NewMulti(logger, ok, failing, last).Notify(context.Background(), testIncident())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send 1/3 notifications")
	assert.ErrorIs(t, err, failing.err)
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, last.calls, "a failure does not stop the fan-out")

	assert.NoError(t, NewMulti(logger, ok).Notify(context.Background(), testIncident()))
}
