package mandates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/dbx"
	"github.com/dverhagen/twikeysync/internal/models"
)

// PostgresRepository implements mandate storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const mandateColumns = `mndt_id, state, partner_id, contract_id, debtor_name, debtor_email, iban, bic, sign_url, reason, updated_at`

func (r *PostgresRepository) get(ctx context.Context, mndtID string, forUpdate bool) (*models.Mandate, error) {
	query := `SELECT ` + mandateColumns + ` FROM mandates WHERE mndt_id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var m models.Mandate
	err := r.db.QueryRowContext(ctx, query, mndtID).Scan(
		&m.MndtID, &m.State, &m.PartnerID, &m.ContractID, &m.DebtorName,
		&m.DebtorEmail, &m.IBAN, &m.BIC, &m.SignURL, &m.Reason, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &m, nil
}

// Get returns the mandate with the given remote identifier.
func (r *PostgresRepository) Get(ctx context.Context, mndtID string) (*models.Mandate, error) {
	return r.get(ctx, mndtID, false)
}

// GetForUpdate returns the mandate holding a row lock for the enclosing
// transaction so feed-driven and direct writes never race.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, mndtID string) (*models.Mandate, error) {
	return r.get(ctx, mndtID, true)
}

// Upsert inserts or refreshes the local mirror row by mandate id.
func (r *PostgresRepository) Upsert(ctx context.Context, m *models.Mandate) error {
	query := `
		INSERT INTO mandates (mndt_id, state, partner_id, contract_id, debtor_name, debtor_email, iban, bic, sign_url, reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (mndt_id)
		DO UPDATE SET
			state = EXCLUDED.state,
			partner_id = EXCLUDED.partner_id,
			contract_id = EXCLUDED.contract_id,
			debtor_name = EXCLUDED.debtor_name,
			debtor_email = EXCLUDED.debtor_email,
			iban = EXCLUDED.iban,
			bic = EXCLUDED.bic,
			sign_url = EXCLUDED.sign_url,
			reason = EXCLUDED.reason,
			updated_at = now();
	`
	_, err := r.db.ExecContext(ctx, query,
		m.MndtID, m.State, m.PartnerID, m.ContractID, m.DebtorName,
		m.DebtorEmail, m.IBAN, m.BIC, m.SignURL, m.Reason)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SetState moves a mandate to the given state with an optional reason.
func (r *PostgresRepository) SetState(ctx context.Context, mndtID string, state models.MandateState, reason string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mandates SET state=$2, reason=$3, updated_at=now() WHERE mndt_id=$1`,
		mndtID, state, reason)
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
