// Package infraction deduplicates violation reports per identity and type.
package infraction

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// Store persists keys so they survive a restart within one scope.
type Store interface {
	Record(ctx context.Context, scope string, key domain.InfractionKey, sessionID uuid.UUID) (bool, error)
}

// ExamScope names the persisted scope of one subject's exam day.
func ExamScope(subject, date string) string {
	return subject + "/" + date
}

// Tracker reports each (identity, type) at most once. It is owned by one
// session.
type Tracker struct {
	mu        sync.Mutex
	seen      map[domain.InfractionKey]struct{}
	order     []domain.InfractionKey
	store     Store
	scope     string
	sessionID uuid.UUID
	logger    *slog.Logger
}

type Option func(*Tracker)

// WithStore additionally records keys in store under scope.
func WithStore(store Store, scope string) Option {
	return func(t *Tracker) {
		t.store = store
		t.scope = scope
	}
}

func WithSessionID(id uuid.UUID) Option {
	return func(t *Tracker) {
		t.sessionID = id
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		seen:   make(map[domain.InfractionKey]struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ReportIfNew marks (identity, typ) as seen and reports whether it was new.
// The key is marked before returning, so callers notify only on true and a
// failed notification never re-arms it. Unknown identities are ignored.
//
// With a store, a key already recorded by an earlier session of the same
// scope is not new. If the store fails the in-memory result is used.
func (t *Tracker) ReportIfNew(ctx context.Context, identity string, typ domain.Class) (bool, error) {
	if identity == "" || identity == domain.Unknown {
		return false, nil
	}

	key := domain.InfractionKey{Identity: identity, Type: typ}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[key]; ok {
		return false, nil
	}
	t.seen[key] = struct{}{}
	t.order = append(t.order, key)

	if t.store == nil {
		return true, nil
	}

	isNew, err := t.store.Record(ctx, t.scope, key, t.sessionID)
	if err != nil {
		t.logger.Warn("persisting infraction failed, using session dedup",
			"identity", identity,
			"type", string(typ),
			"scope", t.scope,
			"error", err,
		)
		return true, nil
	}
	return isNew, nil
}

// Seen returns the keys marked so far in first-seen order.
func (t *Tracker) Seen() []domain.InfractionKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.InfractionKey, len(t.order))
	copy(out, t.order)
	return out
}
