// Package feed drains the remote change feeds (mandates, invoices) and
// applies each classified event to local state. Pulling is cursor-based:
// the watermark of the last fully applied page is persisted so that a
// later pull, or a restart, resumes behind it instead of replaying.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/logging"
	"github.com/dverhagen/twikeysync/internal/twikey"
)

// PageSource fetches one page of a remote change feed starting after the
// given cursor. An empty Events slice means the feed is drained.
type PageSource interface {
	FeedPage(ctx context.Context, cursor string) (*twikey.FeedPage, error)
}

// Sink applies classified feed events to local state, one method per event
// kind. Implementations must be idempotent under redelivery and return
// common.ErrSkip for documents that are not locally recognized.
type Sink interface {
	OnCreated(ctx context.Context, doc json.RawMessage) error
	OnUpdated(ctx context.Context, originalID string, doc json.RawMessage, reason string) error
	OnCanceled(ctx context.Context, originalID string, reason string) error
}

// CursorStore persists the per-feed resumption watermark.
type CursorStore interface {
	Get(ctx context.Context, feed string) (string, error)
	Set(ctx context.Context, feed string, cursor string) error
}

// Puller drains one named feed into a sink.
type Puller struct {
	feed    string
	source  PageSource
	sink    Sink
	cursors CursorStore
	log     logging.Logger
}

func NewPuller(feed string, source PageSource, sink Sink, cursors CursorStore, log logging.Logger) *Puller {
	return &Puller{
		feed:    feed,
		source:  source,
		sink:    sink,
		cursors: cursors,
		log:     log.With("feed", feed),
	}
}

// Pull fetches pages until the feed is drained, applying events in feed
// order. Event-level failures are logged and do not stop the drain: the
// remote redelivers nothing, so skipping past a bad event is preferable to
// wedging the whole feed behind it. A failed page fetch aborts the pull;
// events already applied stand, and the persisted cursor points at the
// last fully applied page.
func (p *Puller) Pull(ctx context.Context) error {
	cursor, err := p.cursors.Get(ctx, p.feed)
	if err != nil {
		return fmt.Errorf("loading cursor: %w", err)
	}

	for {
		page, err := p.source.FeedPage(ctx, cursor)
		if err != nil {
			return fmt.Errorf("fetching page: %w", err)
		}
		if len(page.Events) == 0 {
			return nil
		}

		for _, ev := range page.Events {
			if err := p.dispatch(ctx, ev); err != nil {
				if errors.Is(err, common.ErrSkip) {
					p.log.Debug(ctx, "skipping event", "kind", ev.Kind.String(), "id", ev.OriginalID)
					continue
				}
				p.log.Error(ctx, "applying event", "kind", ev.Kind.String(), "id", ev.OriginalID, "error", err)
			}
		}

		cursor = page.Cursor
		if err := p.cursors.Set(ctx, p.feed, cursor); err != nil {
			return fmt.Errorf("persisting cursor: %w", err)
		}
		p.log.Info(ctx, "feed page applied", "messages", len(page.Events), "cursor", cursor)
	}
}

func (p *Puller) dispatch(ctx context.Context, ev twikey.FeedEvent) error {
	switch ev.Kind {
	case twikey.EventCreated:
		return p.sink.OnCreated(ctx, ev.Document)
	case twikey.EventAmended:
		return p.sink.OnUpdated(ctx, ev.OriginalID, ev.Document, ev.Reason)
	case twikey.EventCanceled:
		return p.sink.OnCanceled(ctx, ev.OriginalID, ev.Reason)
	}
	return fmt.Errorf("unexpected event kind %d", ev.Kind)
}
