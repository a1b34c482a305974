package postgres

import (
	"context"
	"time"

	"github.com/edutrack/progress-engine/internal/domain/preference"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

// PreferenceRepository implements preference.Repository for PostgreSQL.
type PreferenceRepository struct {
	conn *Connection
}

var _ preference.Repository = (*PreferenceRepository)(nil)

// NewPreferenceRepository creates a new PreferenceRepository.
func NewPreferenceRepository(conn *Connection) *PreferenceRepository {
	return &PreferenceRepository{conn: conn}
}

func (r *PreferenceRepository) Get(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := r.conn.read(ctx, func(ctx context.Context, q Querier) error {
		return q.QueryRow(ctx,
			`SELECT value FROM preferences WHERE user_id = $1 AND key = $2`, userID, key,
		).Scan(&value)
	})
	if IsNoRows(err) {
		return "", shared.ErrPreferenceNotFound
	}
	if err != nil {
		return "", shared.StorageFailure("preference", "Get", err)
	}
	return value, nil
}

func (r *PreferenceRepository) Set(ctx context.Context, userID, key, value string) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO preferences (user_id, key, value, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`,
		userID, key, value, time.Now().UTC())
	if err != nil {
		return shared.StorageFailure("preference", "Set", err)
	}
	return nil
}
