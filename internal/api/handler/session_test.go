package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/exam"
	"github.com/saturnino-fabrica-de-software/proctor/internal/session"
)

func TestSessionHandler_Start(t *testing.T) {
	examID := uuid.New()
	running := exam.Status{ExamID: examID, Subject: "Math", State: exam.StateRunning}

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockExamRunner)
		expectedStatus int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name: "exam with default duration",
			body: `{"subject":"math"}`,
			setupMock: func(m *MockExamRunner) {
				m.On("StartPhases", mock.Anything, "Math", exam.ExamPhases(10*time.Second)).Return(running, nil)
			},
			expectedStatus: 202,
			checkResponse: func(t *testing.T, body []byte) {
				var resp exam.Status
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, examID, resp.ExamID)
				assert.Equal(t, exam.StateRunning, resp.State)
			},
		},
		{
			name: "attendance only with custom duration",
			body: `{"subject":"Math","mode":"attendance","attendance_seconds":30}`,
			setupMock: func(m *MockExamRunner) {
				m.On("StartPhases", mock.Anything, "Math", []exam.Phase{{Mode: session.ModeAttendance, Duration: 30 * time.Second}}).Return(running, nil)
			},
			expectedStatus: 202,
		},
		{
			name: "infraction only",
			body: `{"subject":"Math","mode":"infraction"}`,
			setupMock: func(m *MockExamRunner) {
				m.On("StartPhases", mock.Anything, "Math", []exam.Phase{{Mode: session.ModeInfraction}}).Return(running, nil)
			},
			expectedStatus: 202,
		},
		{
			name:           "missing subject",
			body:           `{"mode":"exam"}`,
			setupMock:      func(m *MockExamRunner) {},
			expectedStatus: 422,
		},
		{
			name:           "unknown mode",
			body:           `{"subject":"Math","mode":"party"}`,
			setupMock:      func(m *MockExamRunner) {},
			expectedStatus: 422,
		},
		{
			name: "already running",
			body: `{"subject":"Math"}`,
			setupMock: func(m *MockExamRunner) {
				m.On("StartPhases", mock.Anything, "Math", mock.Anything).Return(exam.Status{}, domain.ErrSessionActive)
			},
			expectedStatus: 409,
			checkResponse: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "SESSION_ACTIVE")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(MockExamRunner)
			tt.setupMock(runner)

			app := newTestApp()
			h := NewSessionHandler(context.Background(), runner, 10*time.Second, testLogger())
			app.Post("/v1/sessions", h.Start)

			req := httptest.NewRequest("POST", "/v1/sessions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.checkResponse != nil {
				body, _ := io.ReadAll(resp.Body)
				tt.checkResponse(t, body)
			}
			runner.AssertExpectations(t)
		})
	}
}

func TestSessionHandler_CurrentAndStop(t *testing.T) {
	status := exam.Status{ExamID: uuid.New(), Subject: "Math", State: exam.StateStopped}

	t.Run("current", func(t *testing.T) {
		runner := new(MockExamRunner)
		runner.On("Status").Return(status, nil)

		app := newTestApp()
		h := NewSessionHandler(context.Background(), runner, time.Second, testLogger())
		app.Get("/v1/sessions/current", h.Current)

		resp, err := app.Test(httptest.NewRequest("GET", "/v1/sessions/current", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("no session", func(t *testing.T) {
		runner := new(MockExamRunner)
		runner.On("Status").Return(exam.Status{}, domain.ErrNoActiveSession)

		app := newTestApp()
		h := NewSessionHandler(context.Background(), runner, time.Second, testLogger())
		app.Get("/v1/sessions/current", h.Current)

		resp, err := app.Test(httptest.NewRequest("GET", "/v1/sessions/current", nil))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
	})

	t.Run("stop", func(t *testing.T) {
		runner := new(MockExamRunner)
		runner.On("Stop").Return(nil)
		runner.On("Status").Return(status, nil)

		app := newTestApp()
		h := NewSessionHandler(context.Background(), runner, time.Second, testLogger())
		app.Post("/v1/sessions/current/stop", h.Stop)

		resp, err := app.Test(httptest.NewRequest("POST", "/v1/sessions/current/stop", nil))
		require.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)
		runner.AssertExpectations(t)
	})

	t.Run("stop without session", func(t *testing.T) {
		runner := new(MockExamRunner)
		runner.On("Stop").Return(domain.ErrNoActiveSession)

		app := newTestApp()
		h := NewSessionHandler(context.Background(), runner, time.Second, testLogger())
		app.Post("/v1/sessions/current/stop", h.Stop)

		resp, err := app.Test(httptest.NewRequest("POST", "/v1/sessions/current/stop", nil))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
	})
}
