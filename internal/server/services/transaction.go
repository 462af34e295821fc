package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/dbx"
	"github.com/dverhagen/twikeysync/internal/logging"
	"github.com/dverhagen/twikeysync/internal/models"
	"github.com/dverhagen/twikeysync/internal/repositories/repomanager"
	sc "github.com/dverhagen/twikeysync/internal/server/config"
	"github.com/dverhagen/twikeysync/internal/twikey"
)

// TransactionService prepares payment transactions against the provider.
type TransactionService struct {
	db     *sql.DB
	rm     repomanager.RepositoryManager
	tw     *twikey.Client
	config *sc.Config
	log    logging.Logger
}

func NewTransactionService(db *sql.DB, rm repomanager.RepositoryManager, tw *twikey.Client, config *sc.Config, log logging.Logger) *TransactionService {
	return &TransactionService{db: db, rm: rm, tw: tw, config: config, log: log}
}

// CheckoutRequest describes a tokenized checkout to prepare.
type CheckoutRequest struct {
	Reference   string
	Amount      float64
	Customer    twikey.Customer
	RedirectURL string
}

// PrepareTokenizedCheckout signs a mandate for the customer and records a
// pending tokenize transaction referencing it. The returned URL is the
// provider checkout page; settlement happens later, through the webhook or
// the status poll, gated on the mandate reaching signed.
func (s *TransactionService) PrepareTokenizedCheckout(ctx context.Context, req *CheckoutRequest) (string, error) {
	if !s.config.Enabled {
		return "", common.ErrNotConfigured
	}
	if req.Reference == "" {
		return "", fmt.Errorf("checkout without reference: %w", common.ErrValidation)
	}

	sign, err := s.tw.Document.Sign(ctx, &twikey.InviteRequest{
		Customer:           req.Customer,
		Template:           s.config.ContractTemplate,
		Method:             s.config.PaymentMethod,
		RedirectURL:        req.RedirectURL,
		TransactionMessage: req.Reference,
		TransactionAmount:  req.Amount,
	})
	if err != nil {
		return "", err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.rm.Mandates(tx).Upsert(ctx, &models.Mandate{
			MndtID:      sign.MndtID,
			State:       models.MandateStatePending,
			PartnerID:   req.Customer.Number,
			ContractID:  s.config.ContractTemplate,
			DebtorName:  req.Customer.Name,
			DebtorEmail: req.Customer.Email,
			SignURL:     sign.URL,
		}); err != nil {
			return err
		}

		_, err := s.rm.Transactions(tx).Create(ctx, &models.Transaction{
			Reference:   req.Reference,
			ProviderRef: sign.MndtID,
			PartnerID:   req.Customer.Number,
			Amount:      req.Amount,
			Tokenize:    true,
			Status:      models.TransactionPending,
		})
		return err
	})
	if err != nil {
		return "", err
	}

	s.log.Info(ctx, "tokenized checkout prepared", "ref", req.Reference, "mndt_id", sign.MndtID)
	return sign.URL, nil
}
