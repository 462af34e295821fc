// Package reconcile drives the payment transaction state machine from
// provider webhooks and polling. Transitions only move forward; paid and
// canceled are terminal, and a tokenize transaction's status is decided by
// its mandate's local state rather than by the reported webhook status.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/dbx"
	"github.com/dverhagen/twikeysync/internal/logging"
	"github.com/dverhagen/twikeysync/internal/models"
	"github.com/dverhagen/twikeysync/internal/repositories/repomanager"
)

type Reconciler struct {
	db  *sql.DB
	rm  repomanager.RepositoryManager
	log logging.Logger
}

func New(db *sql.DB, rm repomanager.RepositoryManager, log logging.Logger) *Reconciler {
	return &Reconciler{db: db, rm: rm, log: log}
}

// statusRank orders the forward-only statuses. Canceled and error are not
// ranked: they are reachable from any non-terminal status.
var statusRank = map[models.TransactionStatus]int{
	models.TransactionPending:    0,
	models.TransactionAuthorized: 1,
	models.TransactionPaid:       2,
}

func forward(from, to models.TransactionStatus) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case models.TransactionCanceled, models.TransactionError:
		return true
	}
	return statusRank[to] > statusRank[from]
}

// ProcessWebhook applies one provider notification. The reference must
// resolve to exactly one local transaction: the provider echoes back the
// reference alone, so matching is on ref and nothing else, and an
// ambiguous match is a configuration problem we refuse to guess through.
func (r *Reconciler) ProcessWebhook(ctx context.Context, status, ref string) error {
	if ref == "" {
		return fmt.Errorf("webhook without transaction reference: %w", common.ErrValidation)
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		matches, err := r.rm.Transactions(tx).GetByReferenceForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("transaction %q: %w", ref, common.ErrNotFound)
		}
		if len(matches) > 1 {
			return fmt.Errorf("reference %q matches %d transactions: %w", ref, len(matches), common.ErrValidation)
		}
		t := matches[0]

		if t.Status.Terminal() {
			r.log.Debug(ctx, "ignoring webhook for settled transaction", "ref", ref, "status", string(t.Status))
			return nil
		}

		if t.Tokenize {
			return r.settleTokenize(ctx, tx, t)
		}

		// A notification without a status only confirms the provider saw
		// the transaction.
		if status == "" {
			status = "pending"
		}

		switch status {
		case "pending":
			return r.apply(ctx, tx, t, models.TransactionPending, "")
		case "authorized":
			return r.apply(ctx, tx, t, models.TransactionAuthorized, "")
		case "paid":
			return r.apply(ctx, tx, t, models.TransactionPaid, "")
		case "expired", "canceled", "failed":
			return r.apply(ctx, tx, t, models.TransactionCanceled, status)
		default:
			return r.apply(ctx, tx, t, models.TransactionError, "invalid status")
		}
	})
}

// PollPending re-evaluates a still-pending tokenize transaction, used when
// no webhook arrived. A signed mandate settles it; anything else leaves it
// pending for the next poll.
func (r *Reconciler) PollPending(ctx context.Context, ref string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		matches, err := r.rm.Transactions(tx).GetByReferenceForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("transaction %q: %w", ref, common.ErrNotFound)
		}
		if len(matches) > 1 {
			return fmt.Errorf("reference %q matches %d transactions: %w", ref, len(matches), common.ErrValidation)
		}
		t := matches[0]

		if t.Status != models.TransactionPending || !t.Tokenize {
			return nil
		}
		return r.settleTokenize(ctx, tx, t)
	})
}

// settleTokenize decides a tokenize transaction from its mandate: signed
// means collected (mint the reuse token, mark paid), anything else keeps
// it pending until the mandate feed catches up.
func (r *Reconciler) settleTokenize(ctx context.Context, tx dbx.DBTX, t *models.Transaction) error {
	m, err := r.rm.Mandates(tx).Get(ctx, t.ProviderRef)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if m == nil || m.State != models.MandateStateSigned {
		r.log.Debug(ctx, "mandate not signed yet", "ref", t.Reference, "mndt_id", t.ProviderRef)
		return r.apply(ctx, tx, t, models.TransactionPending, "")
	}
	if err := r.tokenFromMandate(ctx, tx, t, m); err != nil {
		return err
	}
	return r.apply(ctx, tx, t, models.TransactionPaid, "")
}

// tokenFromMandate mints a reusable payment token backed by the signed
// mandate and links it to the transaction. Idempotent: an already
// tokenized transaction is left alone.
func (r *Reconciler) tokenFromMandate(ctx context.Context, tx dbx.DBTX, t *models.Transaction, m *models.Mandate) error {
	if t.TokenID.Valid {
		return nil
	}
	repo := r.rm.Transactions(tx)

	tokenID := uuid.NewString()
	if err := repo.CreateToken(ctx, tokenID, m.PartnerID, m.MndtID); err != nil {
		return err
	}
	if err := repo.SetToken(ctx, t.ID, tokenID); err != nil {
		return err
	}
	t.TokenID = sql.NullString{String: tokenID, Valid: true}
	r.log.Info(ctx, "payment token created", "ref", t.Reference, "mndt_id", m.MndtID)
	return nil
}

func (r *Reconciler) apply(ctx context.Context, tx dbx.DBTX, t *models.Transaction, target models.TransactionStatus, reason string) error {
	if t.Status == target {
		return nil
	}
	if !forward(t.Status, target) {
		r.log.Debug(ctx, "ignoring backward transition", "ref", t.Reference,
			"from", string(t.Status), "to", string(target))
		return nil
	}
	if err := r.rm.Transactions(tx).UpdateStatus(ctx, t.ID, target, reason); err != nil {
		return err
	}
	r.log.Info(ctx, "transaction status updated", "ref", t.Reference,
		"from", string(t.Status), "to", string(target), "reason", reason)
	t.Status = target
	t.Reason = reason
	return nil
}
