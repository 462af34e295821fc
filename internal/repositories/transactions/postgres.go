package transactions

import (
	"context"
	"fmt"

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/dbx"
	"github.com/dverhagen/twikeysync/internal/models"
)

// PostgresRepository implements transaction storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transactionColumns = `id, reference, provider_ref, partner_id, amount, tokenize, status, reason, token_id, created_at, updated_at`

// Create inserts a new transaction and returns its id.
func (r *PostgresRepository) Create(ctx context.Context, t *models.Transaction) (int64, error) {
	query := `
		INSERT INTO transactions (reference, provider_ref, partner_id, amount, tokenize, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id;
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		t.Reference, t.ProviderRef, t.PartnerID, t.Amount, t.Tokenize, t.Status, t.Reason,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) getByReference(ctx context.Context, ref string, forUpdate bool) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := r.db.QueryContext(ctx, query, ref)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(
			&t.ID, &t.Reference, &t.ProviderRef, &t.PartnerID, &t.Amount,
			&t.Tokenize, &t.Status, &t.Reason, &t.TokenID, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByReference returns every transaction matching the reference.
func (r *PostgresRepository) GetByReference(ctx context.Context, ref string) ([]*models.Transaction, error) {
	return r.getByReference(ctx, ref, false)
}

// GetByReferenceForUpdate returns matching transactions holding row locks
// for the enclosing transaction.
func (r *PostgresRepository) GetByReferenceForUpdate(ctx context.Context, ref string) ([]*models.Transaction, error) {
	return r.getByReference(ctx, ref, true)
}

// UpdateStatus moves a transaction to the given status with a reason.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status models.TransactionStatus, reason string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET status=$2, reason=$3, updated_at=now() WHERE id=$1`,
		id, status, reason)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// SetToken links a minted token to a transaction.
func (r *PostgresRepository) SetToken(ctx context.Context, id int64, tokenID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET token_id=$2, updated_at=now() WHERE id=$1`,
		id, tokenID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// CreateToken mints a reusable payment token backed by a signed mandate.
func (r *PostgresRepository) CreateToken(ctx context.Context, tokenID string, partnerID int64, mndtID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_tokens (id, partner_id, mndt_id, created_at) VALUES ($1, $2, $3, now())`,
		tokenID, partnerID, mndtID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
