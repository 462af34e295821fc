// Package invoices provides the PostgreSQL-backed repository for local
// accounting invoices and their remote links.
package invoices

import (
	"context"

	"github.com/dverhagen/twikeysync/internal/models"
)

// Repository is the storage surface for local invoices. GetForUpdate takes
// a row-level lock and must run inside a transaction.
type Repository interface {
	Get(ctx context.Context, id int64) (*models.Invoice, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Invoice, error)
	Create(ctx context.Context, inv *models.Invoice) (int64, error)
	Update(ctx context.Context, inv *models.Invoice) error
}
