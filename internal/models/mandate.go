package models

import "time"

// MandateState is the local lifecycle of a direct-debit mandate.
// The remote service is the source of truth; the local row is a cache
// updated via the mandate feed. A mandate that reached StateSigned only
// leaves it through an explicit cancel event.
type MandateState string

const (
	MandateStatePending  MandateState = "pending"
	MandateStateSigned   MandateState = "signed"
	MandateStateCanceled MandateState = "canceled"
)

// Mandate mirrors a remote mandate document.
type Mandate struct {
	MndtID      string
	State       MandateState
	PartnerID   int64
	ContractID  string
	DebtorName  string
	DebtorEmail string
	IBAN        string
	BIC         string
	SignURL     string
	Reason      string
	UpdatedAt   time.Time
}
