// Package transactions provides the PostgreSQL-backed repository for local
// payment transactions and the tokens minted from signed mandates.
package transactions

import (
	"context"

	"github.com/dverhagen/twikeysync/internal/models"
)

// Repository is the storage surface for payment transactions.
//
// GetByReference intentionally matches on the reference alone and may
// return more than one row; callers decide what an ambiguous match means.
// The ForUpdate variant takes row-level locks and must run inside a
// transaction.
type Repository interface {
	Create(ctx context.Context, t *models.Transaction) (int64, error)
	GetByReference(ctx context.Context, ref string) ([]*models.Transaction, error)
	GetByReferenceForUpdate(ctx context.Context, ref string) ([]*models.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status models.TransactionStatus, reason string) error
	SetToken(ctx context.Context, id int64, tokenID string) error
	CreateToken(ctx context.Context, tokenID string, partnerID int64, mndtID string) error
}
