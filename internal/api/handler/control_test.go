package handler

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

func TestControlHandler_Quit(t *testing.T) {
	for _, stopErr := range []error{nil, domain.ErrNoActiveSession} {
		runner := new(MockExamRunner)
		runner.On("Stop").Return(stopErr)

		quit := make(chan struct{})
		h := NewControlHandler(runner, func() { close(quit) }, testLogger())

		app := newTestApp()
		app.Post("/v1/quit", h.Quit)

		resp, err := app.Test(httptest.NewRequest("POST", "/v1/quit", nil))
		require.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)

		select {
		case <-quit:
		case <-time.After(time.Second):
			t.Fatal("quit callback was not invoked")
		}
		runner.AssertExpectations(t)
	}
}
