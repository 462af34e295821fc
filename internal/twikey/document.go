package twikey

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dverhagen/twikeysync/internal/common"
)

// DocumentService exposes the mandate (document) endpoints.
type DocumentService struct {
	c *Client
}

// Mandate is the remote mandate document as delivered on the feed,
// pain.009-flavored field names included.
type Mandate struct {
	MndtID      string     `json:"MndtId"`
	LclInstrm   string     `json:"LclInstrm"`
	Dbtr        Debtor     `json:"Dbtr"`
	DbtrAcct    string     `json:"DbtrAcct"`
	DbtrAgt     DebtorAgt  `json:"DbtrAgt"`
	SplmtryData []KeyValue `json:"SplmtryData"`
}

type Debtor struct {
	Nm       string   `json:"Nm"`
	CtctDtls CtctDtls `json:"CtctDtls"`
}

type CtctDtls struct {
	EmailAdr string `json:"EmailAdr"`
}

type DebtorAgt struct {
	FinInstnID FinInstnID `json:"FinInstnId"`
}

type FinInstnID struct {
	BICFI string `json:"BICFI"`
}

type KeyValue struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// SupplementaryValue returns the value of the named supplementary-data key,
// or "" when absent. The customer number travels here on feed documents.
func (m *Mandate) SupplementaryValue(key string) string {
	for _, kv := range m.SplmtryData {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// Invite is the response to a mandate invite: the assigned mandate number
// and the signing URL to hand to the customer.
type Invite struct {
	MndtID string `json:"mndtId"`
	URL    string `json:"url"`
	Key    string `json:"key"`
}

// SignResult is the response to a prepared sign request.
type SignResult struct {
	MndtID string `json:"MndtId"`
	URL    string `json:"url"`
}

// InviteRequest prepares a mandate invite or sign call.
type InviteRequest struct {
	Customer           Customer
	Template           string // contract template (ct)
	Method             string
	RedirectURL        string
	TransactionMessage string
	TransactionAmount  float64
}

func (r *InviteRequest) values() url.Values {
	v := r.Customer.Values()
	if r.Template != "" {
		v.Set("ct", r.Template)
	}
	if r.Method != "" {
		v.Set("method", r.Method)
	}
	if r.RedirectURL != "" {
		v.Set("redirectUrl", r.RedirectURL)
	}
	if r.TransactionMessage != "" {
		v.Set("transactionMessage", r.TransactionMessage)
	}
	if r.TransactionAmount != 0 {
		v.Set("transactionAmount", fmt.Sprintf("%.2f", r.TransactionAmount))
	}
	return v
}

// Create invites a customer to sign a new mandate.
func (s *DocumentService) Create(ctx context.Context, req *InviteRequest) (*Invite, error) {
	var out Invite
	if err := s.c.postForm(ctx, "Invite", "/invite", req.values(), &out); err != nil {
		return nil, err
	}
	s.c.log.Debug(ctx, "added new mandate", "mndtId", out.MndtID)
	return &out, nil
}

// Sign prepares a mandate for immediate signing, returning the mandate
// number and checkout URL. Used by tokenized payment flows.
func (s *DocumentService) Sign(ctx context.Context, req *InviteRequest) (*SignResult, error) {
	var out SignResult
	if err := s.c.postForm(ctx, "Sign", "/sign", req.values(), &out); err != nil {
		return nil, err
	}
	s.c.log.Debug(ctx, "prepared mandate for signing", "mndtId", out.MndtID)
	return &out, nil
}

// SignURL returns the hosted signing page for an invite key, for cases
// where the stored key must be turned back into a customer-facing link.
func (s *DocumentService) SignURL(key string) string {
	return strings.TrimSuffix(s.c.cfg.AppURL, "/") + "/" + s.c.cfg.MerchantID + "/" + key
}

// Update amends mandate attributes. Fields are the raw form fields the
// remote expects (mndtId plus whatever changes).
func (s *DocumentService) Update(ctx context.Context, fields url.Values) error {
	if fields.Get("mndtId") == "" {
		return fmt.Errorf("%w: mndtId is required", common.ErrValidation)
	}
	return s.c.postForm(ctx, "Update", "/mandate/update", fields, nil)
}

// Cancel cancels a mandate. A reason is part of the caller contract and is
// rejected before dispatch when absent.
func (s *DocumentService) Cancel(ctx context.Context, mndtID, reason string) error {
	if mndtID == "" {
		return fmt.Errorf("%w: mndtId is required", common.ErrValidation)
	}
	if reason == "" {
		return fmt.Errorf("%w: cancellation reason is required", common.ErrValidation)
	}
	q := url.Values{"mndtId": {mndtID}, "rsn": {reason}}
	resp, err := s.c.call(ctx, "Cancel", http.MethodDelete, "/mandate?"+q.Encode(), nil, "", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	s.c.log.Debug(ctx, "canceled mandate", "mndtId", mndtID, "reason", reason)
	return nil
}

// FeedPage reads one page of the mandate change feed, resuming after the
// given cursor ("" for a fresh start). The returned cursor comes from the
// X-LAST response header.
func (s *DocumentService) FeedPage(ctx context.Context, cursor string) (*FeedPage, error) {
	extra := http.Header{}
	extra.Set(headerFeedTypes, "CORE,B2B,CREDITCARD")
	if cursor != "" {
		extra.Set(headerFeedResume, cursor)
	}

	resp, err := s.c.call(ctx, "Feed", http.MethodGet, "/mandate", nil, "", extra)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Messages []mandateFeedMessage `json:"Messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, requestError("Feed", fmt.Errorf("malformed response: %w", err))
	}

	page := &FeedPage{Cursor: resp.Header.Get(headerFeedCursor)}
	for _, msg := range body.Messages {
		page.Events = append(page.Events, classifyMandateMessage(msg))
	}
	return page, nil
}

// UpdateCustomer patches customer attributes on the remote side.
func (s *DocumentService) UpdateCustomer(ctx context.Context, customerID int64, fields url.Values) error {
	path := "/customer/" + strconv.FormatInt(customerID, 10) + "?" + fields.Encode()
	resp, err := s.c.call(ctx, "Update customer", http.MethodPatch, path, nil, "", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
