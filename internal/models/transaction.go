package models

import (
	"database/sql"
	"time"
)

// TransactionStatus is the local payment transaction state machine.
// Transitions only move forward; Paid and Canceled are terminal, Error is
// terminal for automation (a retry means a new transaction).
type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionAuthorized TransactionStatus = "authorized"
	TransactionPaid       TransactionStatus = "paid"
	TransactionCanceled   TransactionStatus = "canceled"
	TransactionError      TransactionStatus = "error"
)

// Terminal reports whether no further automated transition may leave s.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionPaid, TransactionCanceled, TransactionError:
		return true
	}
	return false
}

// Transaction is a local payment transaction. ProviderRef is the remote
// reference (mandate id for tokenize flows, invoice id otherwise).
type Transaction struct {
	ID          int64
	Reference   string
	ProviderRef string
	PartnerID   int64
	Amount      float64
	Tokenize    bool
	Status      TransactionStatus
	Reason      string
	TokenID     sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
