package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edutrack/progress-engine/internal/domain/preference"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

// PreferenceRepo implements preference.Repository.
type PreferenceRepo struct {
	db *sqlx.DB
}

var _ preference.Repository = (*PreferenceRepo)(nil)

func (r *PreferenceRepo) Get(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", shared.ErrPreferenceNotFound
	}
	if err != nil {
		return "", shared.StorageFailure("preference", "Get", err)
	}
	return value, nil
}

func (r *PreferenceRepo) Set(ctx context.Context, userID, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		userID, key, value, time.Now().UTC().UnixNano())
	if err != nil {
		return shared.StorageFailure("preference", "Set", err)
	}
	return nil
}
