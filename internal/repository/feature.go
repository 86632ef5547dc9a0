package repository

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// FeatureRepository persists per-subject reference descriptors.
type FeatureRepository struct {
	pool PgxPool
}

func NewFeatureRepository(pool PgxPool) *FeatureRepository {
	return &FeatureRepository{pool: pool}
}

// Replace overwrites the stored references of subject with identities,
// keeping their order. Absent references are stored as NULL.
func (r *FeatureRepository) Replace(ctx context.Context, subject string, identities []domain.Identity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace features: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM identity_features WHERE subject = $1`, subject); err != nil {
		return fmt.Errorf("clear features: %w", err)
	}

	query := `
		INSERT INTO identity_features (subject, name, reference, samples, position, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	for i, id := range identities {
		var reference *pgvector.Vector
		if id.Reference.Valid {
			vec := pgvector.NewVector(id.Reference.Vector.Float32s())
			reference = &vec
		}

		if _, err := tx.Exec(ctx, query, subject, id.Name, reference, id.Samples, i); err != nil {
			return fmt.Errorf("insert features %s: %w", id.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit features: %w", err)
	}
	return nil
}

// ListBySubject returns the stored references in enrollment order.
func (r *FeatureRepository) ListBySubject(ctx context.Context, subject string) ([]domain.Identity, error) {
	query := `
		SELECT name, reference, samples
		FROM identity_features
		WHERE subject = $1
		ORDER BY position, name
	`

	rows, err := r.pool.Query(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()

	var identities []domain.Identity
	for rows.Next() {
		var (
			id        = domain.Identity{Subject: subject}
			reference *pgvector.Vector
		)
		if err := rows.Scan(&id.Name, &reference, &id.Samples); err != nil {
			return nil, fmt.Errorf("scan features: %w", err)
		}

		id.Reference = domain.Absent()
		if reference != nil {
			d, err := toDescriptor(reference.Slice())
			if err != nil {
				return nil, fmt.Errorf("features %s: %w", id.Name, err)
			}
			id.Reference = domain.Present(d)
		}
		identities = append(identities, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}

	return identities, nil
}

func toDescriptor(v []float32) (domain.Descriptor, error) {
	values := make([]float64, len(v))
	for i, f := range v {
		values[i] = float64(f)
	}
	return domain.DescriptorFromSlice(values)
}
