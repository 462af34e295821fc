package twikey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Remote invoice states as they appear on the feed.
const (
	InvoiceStateBooked   = "BOOKED"
	InvoiceStatePending  = "PENDING"
	InvoiceStatePaid     = "PAID"
	InvoiceStateExpired  = "EXPIRED"
	InvoiceStateArchived = "ARCHIVED"
)

// InvoiceService exposes the remote invoicing endpoints.
type InvoiceService struct {
	c *Client
}

// Invoice is the remote invoice document.
type Invoice struct {
	ID          string    `json:"id"`
	Number      string    `json:"number"`
	Title       string    `json:"title"`
	Ref         FlexRef   `json:"ref"`
	State       string    `json:"state"`
	Amount      float64   `json:"amount"`
	Remittance  string    `json:"remittance"`
	URL         string    `json:"url"`
	LastPayment []Payment `json:"lastpayment"`
}

// FlexRef tolerates the remote sending our back-reference either as a JSON
// string or as a number.
type FlexRef string

func (r *FlexRef) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*r = FlexRef(s)
	return nil
}

// LocalRef resolves the remote document's reference field to the local
// invoice id. ok is false when the field is absent or not numeric, which
// is expected for documents that did not originate here.
func (i *Invoice) LocalRef() (int64, bool) {
	id, err := strconv.ParseInt(string(i.Ref), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Payment is one entry of an invoice's payment history.
type Payment struct {
	Method string `json:"method"`
	PmtInf string `json:"pmtinf"`
	E2E    string `json:"e2e"`
	Msg    string `json:"msg"`
	Link   int64  `json:"link"`
}

// PaymentReference describes the richest available payment-method detail of
// the most recent payment, for annotating the local record.
func (i *Invoice) PaymentReference() string {
	if len(i.LastPayment) == 0 {
		return "unknown"
	}
	// first entry is the most recent payment
	p := i.LastPayment[0]
	switch p.Method {
	case "paylink":
		return fmt.Sprintf("paylink #%d", p.Link)
	case "sdd":
		return fmt.Sprintf("Sepa Direct Debit pmtinf=%s e2e=%s", p.PmtInf, p.E2E)
	case "rcc":
		return fmt.Sprintf("Recurring Credit Card pmtinf=%s e2e=%s", p.PmtInf, p.E2E)
	case "transfer":
		return fmt.Sprintf("Regular transfer msg=%s", p.Msg)
	case "manual":
		return fmt.Sprintf("Manually set as paid msg=%s", p.Msg)
	default:
		return "Other"
	}
}

// CreateInvoiceRequest is the payload for sending a local invoice to the
// remote service. ID is assigned locally (a UUID) so the hosted URL is
// known before the call.
type CreateInvoiceRequest struct {
	ID         string
	Number     string
	Title      string
	Template   string
	Amount     float64
	Date       string
	DueDate    string
	Remittance string
	Ref        string
	Locale     string
	Customer   *Customer
	PDF        []byte
}

// Create registers an invoice with the remote service.
func (s *InvoiceService) Create(ctx context.Context, req *CreateInvoiceRequest) (*Invoice, error) {
	payload := map[string]any{
		"id":         req.ID,
		"number":     req.Number,
		"title":      req.Title,
		"amount":     req.Amount,
		"date":       req.Date,
		"duedate":    req.DueDate,
		"remittance": req.Remittance,
		"ref":        req.Ref,
	}
	if req.Template != "" {
		payload["ct"] = req.Template
	}
	if req.Locale != "" {
		payload["locale"] = req.Locale
	}
	if req.Customer != nil {
		payload["customer"] = req.Customer.JSON()
	}
	if len(req.PDF) > 0 {
		payload["pdf"] = base64.StdEncoding.EncodeToString(req.PDF)
	}

	var out Invoice
	if err := s.c.postJSON(ctx, "Invoice", "/invoice", payload, &out); err != nil {
		return nil, err
	}
	s.c.log.Debug(ctx, "created new invoice", "id", out.ID, "state", out.State)
	return &out, nil
}

// FeedPage reads one page of the invoice change feed, resuming after the
// given cursor ("" for a fresh start).
func (s *InvoiceService) FeedPage(ctx context.Context, cursor string) (*FeedPage, error) {
	extra := http.Header{}
	if cursor != "" {
		extra.Set(headerFeedResume, cursor)
	}

	resp, err := s.c.call(ctx, "Invoice feed", http.MethodGet, "/invoice", nil, "", extra)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Invoices []json.RawMessage `json:"Invoices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, requestError("Invoice feed", fmt.Errorf("malformed response: %w", err))
	}

	page := &FeedPage{Cursor: resp.Header.Get(headerFeedCursor)}
	for _, raw := range body.Invoices {
		page.Events = append(page.Events, classifyInvoiceMessage(raw))
	}
	return page, nil
}

// URL returns the hosted invoice page for the given remote invoice id.
func (s *InvoiceService) URL(invoiceID string) string {
	return strings.TrimSuffix(s.c.cfg.AppURL, "/") + "/" + s.c.cfg.MerchantID + "/" + invoiceID
}
