package twikey

import "encoding/json"

// EventKind tags a change-feed entry. Classification happens once, at the
// ingestion boundary; downstream consumers switch on the kind and never
// re-probe the payload for optional fields.
type EventKind int

const (
	EventCreated EventKind = iota
	EventAmended
	EventCanceled
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventAmended:
		return "amended"
	case EventCanceled:
		return "canceled"
	}
	return "unknown"
}

// FeedEvent is one classified change-feed entry. Document carries the full
// new document body for created and amended events; canceled events carry
// only the original identifier and reason.
type FeedEvent struct {
	Kind       EventKind
	OriginalID string
	Reason     string
	Document   json.RawMessage
}

// FeedPage is one page of the remote change feed. Cursor is the opaque
// high-water mark from the X-LAST response header; persist it after the
// page is fully applied so the next pull resumes behind it.
type FeedPage struct {
	Events []FeedEvent
	Cursor string
}

// mandateFeedMessage is the wire shape of one mandate feed entry. Which of
// the optional fields are present determines the event kind.
type mandateFeedMessage struct {
	Mndt        json.RawMessage `json:"Mndt"`
	OrgnlMndtID string          `json:"OrgnlMndtId"`
	AmdmntRsn   string          `json:"AmdmntRsn"`
	CxlRsn      string          `json:"CxlRsn"`
}

// classifyMandateMessage maps a raw mandate feed entry to its event:
// an amendment reason makes it amended, a cancel reason makes it canceled,
// anything else is a creation carrying the full document.
func classifyMandateMessage(msg mandateFeedMessage) FeedEvent {
	switch {
	case msg.AmdmntRsn != "":
		return FeedEvent{Kind: EventAmended, OriginalID: msg.OrgnlMndtID, Reason: msg.AmdmntRsn, Document: msg.Mndt}
	case msg.CxlRsn != "":
		return FeedEvent{Kind: EventCanceled, OriginalID: msg.OrgnlMndtID, Reason: msg.CxlRsn}
	default:
		var doc struct {
			MndtID string `json:"MndtId"`
		}
		_ = json.Unmarshal(msg.Mndt, &doc)
		return FeedEvent{Kind: EventCreated, OriginalID: doc.MndtID, Document: msg.Mndt}
	}
}

// classifyInvoiceMessage maps a raw invoice feed entry to its event. The
// invoice feed has no distinct cancel kind: it redelivers the full document
// on every state change (archival included), so every entry is an update
// keyed by the remote invoice id.
func classifyInvoiceMessage(raw json.RawMessage) FeedEvent {
	var doc struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &doc)
	return FeedEvent{Kind: EventAmended, OriginalID: doc.ID, Document: raw}
}
