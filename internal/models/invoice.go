package models

import "time"

// InvoiceStatus is the local status of an accounting invoice that may be
// mirrored to the remote invoicing service.
type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "draft"
	InvoiceStatusBooked   InvoiceStatus = "booked"
	InvoiceStatusPending  InvoiceStatus = "pending"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusArchived InvoiceStatus = "archived"
)

// statusRank orders invoice statuses for the more-advanced-wins rule.
// Archived is excluded: it is only reachable through an explicit cancel
// event and through reopen handling, never by rank comparison.
var statusRank = map[InvoiceStatus]int{
	InvoiceStatusDraft:   0,
	InvoiceStatusBooked:  1,
	InvoiceStatusPending: 2,
	InvoiceStatusPaid:    3,
}

// Supersedes reports whether moving from s to next would regress a
// more-advanced status. Paid is sticky: only archive moves past it.
func (s InvoiceStatus) Supersedes(next InvoiceStatus) bool {
	if next == InvoiceStatusArchived {
		return false
	}
	return statusRank[s] > statusRank[next]
}

// Invoice is the local accounting invoice row, including the link to its
// remote mirror when it has been sent out.
type Invoice struct {
	ID             int64
	Number         string
	Status         InvoiceStatus
	Amount         float64
	Date           time.Time
	DueDate        time.Time
	PartnerID      int64
	RemoteID       string // UUID assigned when sent to the remote service
	RemoteURL      string
	ContractID     string
	PaymentNote    string
	SendToRemote   bool
	UpdatedAt      time.Time
}
