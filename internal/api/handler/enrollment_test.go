package handler

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

type stubCamera struct {
	err error
}

func (s stubCamera) Next(context.Context) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return image.NewRGBA(image.Rect(0, 0, 32, 24)), nil
}

func TestEnrollmentHandler_Capture(t *testing.T) {
	root := t.TempDir()
	h := NewEnrollmentHandler(stubCamera{}, root, testLogger())
	h.clock = func() time.Time { return time.Date(2024, 3, 9, 10, 30, 0, 0, time.Local) }

	app := newTestApp()
	app.Post("/v1/enrollment/photos", h.Capture)

	req := httptest.NewRequest("POST", "/v1/enrollment/photos", strings.NewReader(`{"identity":"alice","subjects":["math","PHYSICS"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var result CapturePhotoResponse
	require.NoError(t, json.Unmarshal(body, &result))

	assert.Equal(t, "Alice", result.Identity)
	assert.Equal(t, []string{
		filepath.Join(root, "Math", "Alice", "Alice_Math_20240309_103000.jpg"),
		filepath.Join(root, "Physics", "Alice", "Alice_Physics_20240309_103000.jpg"),
	}, result.Paths)
	for _, p := range result.Paths {
		assert.FileExists(t, p)
	}
}

func TestEnrollmentHandler_Errors(t *testing.T) {
	tests := []struct {
		name           string
		camera         stubCamera
		body           string
		expectedStatus int
	}{
		{name: "missing identity", body: `{"subjects":["Math"]}`, expectedStatus: 422},
		{name: "missing subjects", body: `{"identity":"Alice"}`, expectedStatus: 422},
		{name: "malformed body", body: `{`, expectedStatus: 400},
		{
			name:           "camera offline",
			camera:         stubCamera{err: domain.ErrSourceUnavailable},
			body:           `{"identity":"Alice","subjects":["Math"]}`,
			expectedStatus: 503,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewEnrollmentHandler(tt.camera, t.TempDir(), testLogger())
			app := newTestApp()
			app.Post("/v1/enrollment/photos", h.Capture)

			req := httptest.NewRequest("POST", "/v1/enrollment/photos", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}
