// Package attendance marks each identity present at most once per subject
// and day.
package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// Store inserts a record unless its (name, date, subject) key exists.
type Store interface {
	Insert(ctx context.Context, rec domain.AttendanceRecord) (bool, error)
}

// Ledger is the NotMarked -> Marked state machine over a Store.
type Ledger struct {
	store   Store
	subject string
	clock   func() time.Time
	logger  *slog.Logger
}

// NewLedger returns a ledger for subject. A nil clock uses time.Now.
func NewLedger(store Store, subject string, clock func() time.Time, logger *slog.Logger) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		store:   store,
		subject: subject,
		clock:   clock,
		logger:  logger.With("subject", subject),
	}
}

func (l *Ledger) Subject() string {
	return l.subject
}

// MarkIfAbsent records identity for (subject, date) and reports whether
// this call was the one that marked it. Unknown identities are never
// marked.
func (l *Ledger) MarkIfAbsent(ctx context.Context, identity, subject, date, clock string) (bool, error) {
	if identity == "" || identity == domain.Unknown {
		return false, nil
	}

	rec := domain.AttendanceRecord{Name: identity, Subject: subject, Date: date, Time: clock}
	inserted, err := l.store.Insert(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("mark attendance: %w", err)
	}

	if inserted {
		l.logger.Info("attendance marked", "identity", identity, "date", date, "time", clock)
	} else {
		l.logger.Debug("attendance already marked", "identity", identity, "date", date)
	}
	return inserted, nil
}

// Mark stamps identity with the ledger's subject and the current local
// date and time.
func (l *Ledger) Mark(ctx context.Context, identity string) (bool, error) {
	rec := domain.NewAttendanceRecord(identity, l.subject, l.clock())
	return l.MarkIfAbsent(ctx, rec.Name, rec.Subject, rec.Date, rec.Time)
}
