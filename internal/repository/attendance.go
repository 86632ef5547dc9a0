package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

type AttendanceRepository struct {
	pool PgxPool
}

func NewAttendanceRepository(pool PgxPool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Insert stores rec unless (name, date, subject) is already present.
// It reports whether a row was written. A concurrent duplicate that still
// trips the unique constraint is reported as not inserted.
func (r *AttendanceRepository) Insert(ctx context.Context, rec domain.AttendanceRecord) (bool, error) {
	query := `
		INSERT INTO attendance (name, time, date, subject)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, date, subject) DO NOTHING
	`

	date, err := time.Parse(domain.DateLayout, rec.Date)
	if err != nil {
		return false, domain.ErrValidationFailed.WithError(fmt.Errorf("attendance date %q: %w", rec.Date, err))
	}

	tag, err := r.pool.Exec(ctx, query, rec.Name, rec.Time, date, rec.Subject)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert attendance: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ListBySubjectDate returns the marks of one subject on one day in the
// order they were taken.
func (r *AttendanceRepository) ListBySubjectDate(ctx context.Context, subject, date string) ([]domain.AttendanceRecord, error) {
	query := `
		SELECT name, time, date, subject
		FROM attendance
		WHERE subject = $1 AND date = $2
		ORDER BY time, name
	`

	day, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("attendance date %q: %w", date, err))
	}

	rows, err := r.pool.Query(ctx, query, subject, day)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	records := []domain.AttendanceRecord{}
	for rows.Next() {
		var (
			rec domain.AttendanceRecord
			d   time.Time
		)
		if err := rows.Scan(&rec.Name, &rec.Time, &d, &rec.Subject); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.Date = d.Format(domain.DateLayout)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}

	return records, nil
}
