package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// InfractionRepository records reported (identity, type) keys per scope.
type InfractionRepository struct {
	pool PgxPool
}

func NewInfractionRepository(pool PgxPool) *InfractionRepository {
	return &InfractionRepository{pool: pool}
}

// Record stores the key under scope and reports whether it was new.
func (r *InfractionRepository) Record(ctx context.Context, scope string, key domain.InfractionKey, sessionID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO infractions (id, scope, identity, infraction_type, session_id, reported_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (scope, identity, infraction_type) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, uuid.New(), scope, key.Identity, string(key.Type), sessionID)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("record infraction: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ListByScope returns the keys recorded under scope.
func (r *InfractionRepository) ListByScope(ctx context.Context, scope string) ([]domain.InfractionKey, error) {
	query := `
		SELECT identity, infraction_type
		FROM infractions
		WHERE scope = $1
		ORDER BY reported_at
	`

	rows, err := r.pool.Query(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("list infractions: %w", err)
	}
	defer rows.Close()

	var keys []domain.InfractionKey
	for rows.Next() {
		var (
			key       domain.InfractionKey
			className string
		)
		if err := rows.Scan(&key.Identity, &className); err != nil {
			return nil, fmt.Errorf("scan infraction: %w", err)
		}
		key.Type = domain.Class(className)
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate infractions: %w", err)
	}

	return keys, nil
}
