package attendance

import (
	"context"
	"sync"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

type key struct {
	name, date, subject string
}

// MemoryStore is an in-process Store for dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	seen    map[key]struct{}
	records []domain.AttendanceRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[key]struct{})}
}

func (m *MemoryStore) Insert(_ context.Context, rec domain.AttendanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{rec.Name, rec.Date, rec.Subject}
	if _, ok := m.seen[k]; ok {
		return false, nil
	}
	m.seen[k] = struct{}{}
	m.records = append(m.records, rec)
	return true, nil
}

// Records returns the stored rows in insertion order.
func (m *MemoryStore) Records() []domain.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.AttendanceRecord, len(m.records))
	copy(out, m.records)
	return out
}
