package feed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/dbx"
	"github.com/dverhagen/twikeysync/internal/logging"
	"github.com/dverhagen/twikeysync/internal/models"
	"github.com/dverhagen/twikeysync/internal/repositories/repomanager"
	"github.com/dverhagen/twikeysync/internal/twikey"
)

// customerNumberKey is the supplementary-data key carrying the local
// customer number on feed mandate documents.
const customerNumberKey = "CustomerNumber"

// MandateSink mirrors mandate feed events into the local mandate table.
// A signed mandate only leaves that state through an explicit cancel
// event, and a canceled mandate is terminal: later created or updated
// events for the same id are ignored.
type MandateSink struct {
	db  *sql.DB
	rm  repomanager.RepositoryManager
	log logging.Logger
}

func NewMandateSink(db *sql.DB, rm repomanager.RepositoryManager, log logging.Logger) *MandateSink {
	return &MandateSink{db: db, rm: rm, log: log}
}

// OnCreated mirrors a freshly signed mandate.
func (s *MandateSink) OnCreated(ctx context.Context, doc json.RawMessage) error {
	return s.upsert(ctx, doc, "")
}

// OnUpdated mirrors an amendment. The feed delivers the full new document,
// so the amendment is applied as an upsert carrying the reason.
func (s *MandateSink) OnUpdated(ctx context.Context, originalID string, doc json.RawMessage, reason string) error {
	return s.upsert(ctx, doc, reason)
}

func (s *MandateSink) upsert(ctx context.Context, raw json.RawMessage, reason string) error {
	var doc twikey.Mandate
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decoding mandate document: %w", err)
	}
	if doc.MndtID == "" {
		return fmt.Errorf("mandate document without id: %w", common.ErrValidation)
	}

	partnerID, _ := strconv.ParseInt(doc.SupplementaryValue(customerNumberKey), 10, 64)

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Mandates(tx)

		existing, err := repo.GetForUpdate(ctx, doc.MndtID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		if existing != nil && existing.State == models.MandateStateCanceled {
			s.log.Debug(ctx, "ignoring event for canceled mandate", "mndt_id", doc.MndtID)
			return nil
		}

		m := &models.Mandate{
			MndtID:      doc.MndtID,
			State:       models.MandateStateSigned,
			PartnerID:   partnerID,
			ContractID:  doc.LclInstrm,
			DebtorName:  doc.Dbtr.Nm,
			DebtorEmail: doc.Dbtr.CtctDtls.EmailAdr,
			IBAN:        doc.DbtrAcct,
			BIC:         doc.DbtrAgt.FinInstnID.BICFI,
			Reason:      reason,
		}
		if existing != nil {
			if partnerID == 0 {
				m.PartnerID = existing.PartnerID
			}
			m.SignURL = existing.SignURL
		}
		return repo.Upsert(ctx, m)
	})
}

// OnCanceled marks the mandate canceled with the remote's reason. Unknown
// mandates are skipped: shared feeds carry documents that did not
// originate here.
func (s *MandateSink) OnCanceled(ctx context.Context, originalID string, reason string) error {
	if originalID == "" {
		return fmt.Errorf("cancel event without mandate id: %w", common.ErrValidation)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := s.rm.Mandates(tx).SetState(ctx, originalID, models.MandateStateCanceled, reason)
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("mandate %s: %w", originalID, common.ErrSkip)
		}
		return err
	})
}
