// Package mandates provides the PostgreSQL-backed repository for the local
// mandate mirror.
package mandates

import (
	"context"

	"github.com/dverhagen/twikeysync/internal/models"
)

// Repository is the storage surface for local mandates. GetForUpdate takes
// a row-level lock and must run inside a transaction.
type Repository interface {
	Get(ctx context.Context, mndtID string) (*models.Mandate, error)
	GetForUpdate(ctx context.Context, mndtID string) (*models.Mandate, error)
	Upsert(ctx context.Context, m *models.Mandate) error
	SetState(ctx context.Context, mndtID string, state models.MandateState, reason string) error
}
