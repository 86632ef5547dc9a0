package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_Log(t *testing.T) {
	tests := []struct {
		name          string
		event         Event
		wantEventType string
		wantIdentity  string
		wantHasError  bool
	}{
		{
			name: "attendance marked",
			event: Event{
				SessionID: uuid.New(),
				EventType: EventAttendanceMarked,
				Subject:   "Math",
				Identity:  "Alice",
				Success:   true,
			},
			wantEventType: string(EventAttendanceMarked),
			wantIdentity:  "Alice",
		},
		{
			name: "infraction reported with metadata",
			event: Event{
				SessionID: uuid.New(),
				EventType: EventInfractionReported,
				Identity:  "Bob",
				Success:   true,
				Metadata: map[string]string{
					"type":       "phone",
					"confidence": "0.41",
				},
			},
			wantEventType: string(EventInfractionReported),
			wantIdentity:  "Bob",
		},
		{
			name: "failed notification",
			event: Event{
				SessionID: uuid.New(),
				EventType: EventNotificationSent,
				Identity:  "Bob",
				Provider:  "webhook",
				Success:   false,
				Error:     "HTTP 502",
			},
			wantEventType: string(EventNotificationSent),
			wantIdentity:  "Bob",
			wantHasError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			auditLogger := NewSlogLogger(logger)
			err := auditLogger.Log(context.Background(), tt.event)

			require.NoError(t, err)

			output := buf.String()
			assert.Contains(t, output, tt.wantEventType)
			assert.Contains(t, output, tt.wantIdentity)
			assert.Contains(t, output, "audit_event")
			assert.Contains(t, output, `"component":"audit"`)

			if tt.wantHasError {
				assert.Contains(t, output, tt.event.Error)
			}
		})
	}
}

func TestSlogLogger_Log_GeneratesIDAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	auditLogger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := auditLogger.Log(context.Background(), Event{
		EventType: EventFacesDetected,
		Provider:  "deepface",
		Success:   true,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &logEntry))

	eventID, ok := logEntry["event_id"].(string)
	require.True(t, ok)
	_, err = uuid.Parse(eventID)
	assert.NoError(t, err)

	var payload Event
	require.NoError(t, json.Unmarshal([]byte(logEntry["event_data"].(string)), &payload))
	assert.False(t, payload.Timestamp.IsZero())
}

func TestSlogLogger_Log_UsesProvidedID(t *testing.T) {
	var buf bytes.Buffer
	auditLogger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	expectedID := uuid.New()
	err := auditLogger.Log(context.Background(), Event{
		ID:        expectedID,
		Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EventType: EventSessionFinished,
		Success:   true,
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), expectedID.String())
}

func TestNoOpLogger_Log(t *testing.T) {
	logger := &NoOpLogger{}
	assert.NoError(t, logger.Log(context.Background(), Event{EventType: EventAttendanceMarked}))
}

func TestLoggerInterface_Compliance(t *testing.T) {
	var _ Logger = (*SlogLogger)(nil)
	var _ Logger = (*NoOpLogger)(nil)
}

func TestEvent_JSONOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Event{EventType: EventFacesDetected, Success: true})
	require.NoError(t, err)

	jsonStr := string(data)
	assert.NotContains(t, jsonStr, "identity")
	assert.NotContains(t, jsonStr, "subject")
	assert.NotContains(t, jsonStr, "error")
	assert.NotContains(t, jsonStr, "metadata")
}
