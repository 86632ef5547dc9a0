package frames

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/imaging"
)

// maxSnapshotSize bounds one camera response.
const maxSnapshotSize = 16 << 20

// HTTPSource pulls JPEG snapshots from a network camera, e.g. the
// /shot.jpg endpoint of a phone IP-camera app.
type HTTPSource struct {
	url    string
	client *http.Client
}

type HTTPOption func(*HTTPSource)

func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

func NewHTTPSource(url string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next fetches one snapshot. Transport failures and non-2xx responses are
// reported as domain.ErrSourceUnavailable.
func (s *HTTPSource) Next(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrSourceUnavailable.WithError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.ErrSourceUnavailable.WithError(fmt.Errorf("camera returned HTTP %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, domain.ErrSourceUnavailable.WithError(err)
	}

	return imaging.Decode(data)
}

func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
