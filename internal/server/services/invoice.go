package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/dbx"
	"github.com/dverhagen/twikeysync/internal/logging"
	"github.com/dverhagen/twikeysync/internal/models"
	"github.com/dverhagen/twikeysync/internal/repositories/repomanager"
	sc "github.com/dverhagen/twikeysync/internal/server/config"
	"github.com/dverhagen/twikeysync/internal/twikey"
)

// FeedSyncer triggers a drain of the invoice feed. The invoice service
// calls it after a local write so remote state converges without waiting
// for the next scheduled pull.
type FeedSyncer interface {
	Pull(ctx context.Context) error
}

// PDFStore fetches rendered invoice documents.
type PDFStore interface {
	InvoicePDF(ctx context.Context, number string) ([]byte, error)
}

// InvoiceService owns local invoice mutations and the send-to-remote flow.
// All writes funnel through Write with an explicit origin tag; feed-driven
// writes never re-trigger the push-back hook.
type InvoiceService struct {
	db         *sql.DB
	rm         repomanager.RepositoryManager
	tw         *twikey.Client
	pdfs       PDFStore
	config     *sc.Config
	log        logging.Logger
	feedSyncer FeedSyncer
}

func NewInvoiceService(db *sql.DB, rm repomanager.RepositoryManager, tw *twikey.Client, pdfs PDFStore, config *sc.Config, log logging.Logger) *InvoiceService {
	return &InvoiceService{
		db:     db,
		rm:     rm,
		tw:     tw,
		pdfs:   pdfs,
		config: config,
		log:    log,
	}
}

// SetFeedSyncer wires the push-back hook. Set after construction because
// the invoice feed puller itself depends on this service.
func (s *InvoiceService) SetFeedSyncer(fs FeedSyncer) {
	s.feedSyncer = fs
}

// Get returns the local invoice.
func (s *InvoiceService) Get(ctx context.Context, id int64) (*models.Invoice, error) {
	return s.rm.Invoices(s.db).Get(ctx, id)
}

// Write applies mutate to the invoice under a row lock and persists it.
// A LocalOrigin write on a remote-linked invoice triggers a feed pull so
// the change and the remote's view converge; FeedOrigin writes never do,
// which is what breaks the update loop between local and remote.
func (s *InvoiceService) Write(ctx context.Context, id int64, origin models.Origin, mutate func(*models.Invoice) error) error {
	var linked bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Invoices(tx)
		inv, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(inv); err != nil {
			return err
		}
		linked = inv.RemoteID != ""
		return repo.Update(ctx, inv)
	})
	if err != nil {
		return err
	}

	if origin == models.LocalOrigin && linked && s.feedSyncer != nil {
		if err := s.feedSyncer.Pull(ctx); err != nil {
			s.log.Warn(ctx, "feed sync after local write failed", "invoice_id", id, "error", err)
		}
	}
	return nil
}

// Open books a local invoice and, when it is flagged for remote
// collection, registers it with the provider: assigns a UUID as the remote
// id, embeds the rendered PDF, and stores the hosted payment URL.
func (s *InvoiceService) Open(ctx context.Context, id int64, cust *twikey.Customer) error {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !inv.SendToRemote || inv.RemoteID != "" {
		return s.Write(ctx, id, models.LocalOrigin, func(inv *models.Invoice) error {
			inv.Status = models.InvoiceStatusBooked
			return nil
		})
	}
	if !s.config.Enabled {
		return common.ErrNotConfigured
	}

	remoteID := uuid.NewString()

	pdf, err := s.pdfs.InvoicePDF(ctx, inv.Number)
	if err != nil {
		// An invoice without its render is still collectible.
		s.log.Warn(ctx, "invoice pdf unavailable", "invoice_id", id, "error", err)
	}

	template := inv.ContractID
	if template == "" {
		template = s.config.ContractTemplate
	}

	remote, err := s.tw.Invoice.Create(ctx, &twikey.CreateInvoiceRequest{
		ID:         remoteID,
		Number:     inv.Number,
		Title:      fmt.Sprintf("Invoice %s", inv.Number),
		Template:   template,
		Amount:     inv.Amount,
		Date:       inv.Date.Format("2006-01-02"),
		DueDate:    inv.DueDate.Format("2006-01-02"),
		Remittance: inv.Number,
		Ref:        fmt.Sprintf("%d", inv.ID),
		Customer:   cust,
		PDF:        pdf,
	})
	if err != nil {
		return err
	}

	url := s.tw.Invoice.URL(remote.ID)
	s.log.Info(ctx, "invoice registered with provider", "invoice_id", id, "remote_id", remote.ID, "url", url)

	return s.Write(ctx, id, models.FeedOrigin, func(inv *models.Invoice) error {
		inv.Status = models.InvoiceStatusBooked
		inv.RemoteID = remote.ID
		inv.RemoteURL = url
		return nil
	})
}

// Reopen moves a settled invoice back to booked. Only pending and paid
// invoices can be reopened.
func (s *InvoiceService) Reopen(ctx context.Context, id int64) error {
	return s.Write(ctx, id, models.LocalOrigin, func(inv *models.Invoice) error {
		if inv.Status != models.InvoiceStatusPending && inv.Status != models.InvoiceStatusPaid {
			return fmt.Errorf("cannot reopen %s invoice: %w", inv.Status, common.ErrValidation)
		}
		inv.Status = models.InvoiceStatusBooked
		inv.PaymentNote = ""
		return nil
	})
}
