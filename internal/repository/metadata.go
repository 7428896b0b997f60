package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const refreshKey = "last_refreshed_at"

// timeLayout matches MySQL's NOW() rendering into the TEXT value column.
const timeLayout = "2006-01-02 15:04:05"

// MetadataRepository owns the singleton refresh marker: when the last
// refresh pass ran, regardless of whether any row changed. It is seeded
// NULL at schema creation and only ever updated, never deleted.
type MetadataRepository interface {
	GetRefreshTimestamp(ctx context.Context) (*time.Time, error)
	SetRefreshTimestamp(ctx context.Context, tx *sqlx.Tx) error
}

type MetadataRepositoryImpl struct {
	db *sqlx.DB
}

func NewMetadataRepository(db *sqlx.DB) *MetadataRepositoryImpl {
	return &MetadataRepositoryImpl{db: db}
}

var _ MetadataRepository = (*MetadataRepositoryImpl)(nil)

// GetRefreshTimestamp returns nil before the first successful refresh pass.
func (r *MetadataRepositoryImpl) GetRefreshTimestamp(ctx context.Context) (*time.Time, error) {
	var value sql.NullString
	err := r.db.GetContext(ctx, &value, `
		SELECT value FROM metadata WHERE key_name = ? LIMIT 1
	`, refreshKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !value.Valid || value.String == "" {
		return nil, nil
	}

	t, err := time.Parse(timeLayout, value.String)
	if err != nil {
		return nil, fmt.Errorf("metadata: bad %s value %q: %w", refreshKey, value.String, err)
	}
	return &t, nil
}

// SetRefreshTimestamp stamps the marker with the database clock inside the
// caller's transaction, so it commits or rolls back with the row upserts.
func (r *MetadataRepositoryImpl) SetRefreshTimestamp(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE metadata SET value = NOW(), updated_at = NOW() WHERE key_name = ?
	`, refreshKey)
	return err
}
