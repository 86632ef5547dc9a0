// Package webhook delivers infraction incidents as signed HTTP callbacks,
// optionally backed by a Postgres retry queue.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// DB is the subset of *pgxpool.Pool used by the retry queue.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Service struct {
	endpoint Endpoint
	queue    DB
	client   *http.Client
	logger   *slog.Logger
}

type Option func(*Service)

// WithQueue enables the retry queue: failed deliveries are stored in
// notification_queue and retried by Worker instead of being reported.
func WithQueue(db DB) Option {
	return func(s *Service) {
		s.queue = db
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(endpoint Endpoint, opts ...Option) *Service {
	s := &Service{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify sends an infraction.reported event for the incident.
func (s *Service) Notify(ctx context.Context, incident domain.Incident) error {
	return s.Send(ctx, NewInfractionEvent(incident))
}

func (s *Service) Send(ctx context.Context, event EventPayload) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := s.deliver(ctx, event.Type, payload); err != nil {
		if s.queue == nil {
			return err
		}
		s.logger.Warn("webhook delivery failed, queued for retry",
			"event", event.Type,
			"error", err,
		)
		return s.enqueue(ctx, event.Type, payload, err.Error())
	}

	return nil
}

func (s *Service) deliver(ctx context.Context, eventType string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(s.endpoint.Secret, payload, time.Now()))
	req.Header.Set("X-Proctor-Event", eventType)
	req.Header.Set("User-Agent", "Proctor-Webhook/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("deliver webhook: HTTP %d", resp.StatusCode)
	}

	return nil
}

func (s *Service) enqueue(ctx context.Context, eventType string, payload []byte, errorMsg string) error {
	query := `
		INSERT INTO notification_queue (id, event_type, payload, last_error, next_retry_at)
		VALUES ($1, $2, $3, $4, NOW() + INTERVAL '1 second')
	`

	_, err := s.queue.Exec(ctx, query, uuid.New(), eventType, payload, errorMsg)
	if err != nil {
		return fmt.Errorf("enqueue webhook: %w", err)
	}

	return nil
}
