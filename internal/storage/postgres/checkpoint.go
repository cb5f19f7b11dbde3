package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// CheckpointStore persists the single last-sync timestamp.
type CheckpointStore struct {
	db *sqlx.DB
}

func NewCheckpointStore(db *sqlx.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// Get returns the stored checkpoint, or the zero time when none exists.
func (s *CheckpointStore) Get(ctx context.Context) (time.Time, error) {
	var lastSyncedAt time.Time
	err := GetExecutor(ctx, s.db).GetContext(ctx, &lastSyncedAt,
		"SELECT last_synced_at FROM sync_checkpoint WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return lastSyncedAt.UTC(), nil
}

func (s *CheckpointStore) Set(ctx context.Context, t time.Time) error {
	query := `
		INSERT INTO sync_checkpoint (id, last_synced_at)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, t.UTC())
	return err
}
