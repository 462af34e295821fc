package invoices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/dbx"
	"github.com/dverhagen/twikeysync/internal/models"
)

// PostgresRepository implements invoice storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const invoiceColumns = `id, number, status, amount, date, due_date, partner_id, remote_id, remote_url, contract_id, payment_note, send_to_remote, updated_at`

func (r *PostgresRepository) get(ctx context.Context, id int64, forUpdate bool) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var inv models.Invoice
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&inv.ID, &inv.Number, &inv.Status, &inv.Amount, &inv.Date, &inv.DueDate,
		&inv.PartnerID, &inv.RemoteID, &inv.RemoteURL, &inv.ContractID,
		&inv.PaymentNote, &inv.SendToRemote, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &inv, nil
}

// Get returns the invoice with the given local id.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Invoice, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate returns the invoice holding a row lock for the enclosing
// transaction.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id int64) (*models.Invoice, error) {
	return r.get(ctx, id, true)
}

// Create inserts a new invoice and returns its id.
func (r *PostgresRepository) Create(ctx context.Context, inv *models.Invoice) (int64, error) {
	query := `
		INSERT INTO invoices (number, status, amount, date, due_date, partner_id, remote_id, remote_url, contract_id, payment_note, send_to_remote, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING id;
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		inv.Number, inv.Status, inv.Amount, inv.Date, inv.DueDate, inv.PartnerID,
		inv.RemoteID, inv.RemoteURL, inv.ContractID, inv.PaymentNote, inv.SendToRemote,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// Update persists the mutable fields of an invoice row.
func (r *PostgresRepository) Update(ctx context.Context, inv *models.Invoice) error {
	query := `
		UPDATE invoices SET
			number = $2,
			status = $3,
			remote_id = $4,
			remote_url = $5,
			contract_id = $6,
			payment_note = $7,
			send_to_remote = $8,
			updated_at = now()
		WHERE id = $1;
	`
	res, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.Number, inv.Status, inv.RemoteID, inv.RemoteURL,
		inv.ContractID, inv.PaymentNote, inv.SendToRemote)
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
