package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/logging"
	"github.com/dverhagen/twikeysync/internal/models"
	"github.com/dverhagen/twikeysync/internal/twikey"
)

// InvoiceWriter is the slice of the invoice service the sink needs: reads,
// and origin-tagged writes that suppress the push-back hook for changes
// the remote already knows about.
type InvoiceWriter interface {
	Get(ctx context.Context, id int64) (*models.Invoice, error)
	Write(ctx context.Context, id int64, origin models.Origin, mutate func(*models.Invoice) error) error
}

// statusFromRemote maps remote invoice states onto local statuses. An
// expired payment link moves the invoice back to booked: it is still owed,
// just no longer collectible through that link. Archival travels as a
// regular state update, not as a cancel event.
var statusFromRemote = map[string]models.InvoiceStatus{
	twikey.InvoiceStateBooked:   models.InvoiceStatusBooked,
	twikey.InvoiceStatePending:  models.InvoiceStatusPending,
	twikey.InvoiceStatePaid:     models.InvoiceStatusPaid,
	twikey.InvoiceStateExpired:  models.InvoiceStatusBooked,
	twikey.InvoiceStateArchived: models.InvoiceStatusArchived,
}

// InvoiceSink mirrors invoice feed events into local invoices. Status only
// moves forward (a stale redelivery never regresses paid), and a paid
// event on a draft invoice books it first so the paid transition is always
// observed from an open invoice.
type InvoiceSink struct {
	inv InvoiceWriter
	log logging.Logger
}

func NewInvoiceSink(inv InvoiceWriter, log logging.Logger) *InvoiceSink {
	return &InvoiceSink{inv: inv, log: log}
}

// OnCreated and OnUpdated share one path: the feed always redelivers the
// full document, so both are a state sync against the local mirror.
func (s *InvoiceSink) OnCreated(ctx context.Context, doc json.RawMessage) error {
	return s.apply(ctx, doc)
}

func (s *InvoiceSink) OnUpdated(ctx context.Context, originalID string, doc json.RawMessage, reason string) error {
	return s.apply(ctx, doc)
}

// OnCanceled never fires for invoices: the feed signals archival through
// the state field of an update, which apply handles via the status map.
func (s *InvoiceSink) OnCanceled(ctx context.Context, originalID string, reason string) error {
	return fmt.Errorf("invoice %s: cancel event without document: %w", originalID, common.ErrSkip)
}

func (s *InvoiceSink) apply(ctx context.Context, raw json.RawMessage) error {
	var doc twikey.Invoice
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decoding invoice document: %w", err)
	}
	id, ok := doc.LocalRef()
	if !ok {
		return fmt.Errorf("invoice %s without local reference: %w", doc.ID, common.ErrSkip)
	}

	target, ok := statusFromRemote[doc.State]
	if !ok {
		s.log.Warn(ctx, "unknown remote invoice state", "id", doc.ID, "state", doc.State)
		return nil
	}

	current, err := s.inv.Get(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("invoice %d: %w", id, common.ErrSkip)
	}
	if err != nil {
		return err
	}
	if current.Status == target {
		return nil
	}
	if current.Status.Supersedes(target) {
		s.log.Debug(ctx, "ignoring stale invoice state", "id", id,
			"current", string(current.Status), "incoming", string(target))
		return nil
	}

	// A paid event can arrive while the invoice is still a local draft
	// (sent out before booking). Book it first, then mark it paid, so the
	// two transitions stay distinguishable downstream.
	if target == models.InvoiceStatusPaid && current.Status == models.InvoiceStatusDraft {
		err := s.inv.Write(ctx, id, models.FeedOrigin, func(inv *models.Invoice) error {
			inv.Status = models.InvoiceStatusBooked
			return nil
		})
		if err != nil {
			return err
		}
	}

	return s.inv.Write(ctx, id, models.FeedOrigin, func(inv *models.Invoice) error {
		if inv.Status.Supersedes(target) {
			return nil
		}
		inv.Status = target
		if target == models.InvoiceStatusPaid {
			inv.PaymentNote = "payment via " + doc.PaymentReference()
		}
		return nil
	})
}
