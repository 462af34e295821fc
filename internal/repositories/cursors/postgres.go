package cursors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dverhagen/twikeysync/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, feed string) (string, error) {
	var cursor string
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor FROM feed_cursors WHERE feed=$1`, feed).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return cursor, nil
}

func (r *PostgresRepository) Set(ctx context.Context, feed string, cursor string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feed_cursors (feed, cursor, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (feed) DO UPDATE SET cursor=EXCLUDED.cursor, updated_at=now()`,
		feed, cursor)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
