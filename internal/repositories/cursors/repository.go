// Package cursors persists per-feed resumption watermarks. Each feed
// (mandates, invoices) keeps a single opaque cursor string returned by
// the vendor on the last fully applied page.
package cursors

import "context"

type Repository interface {
	// Get returns the stored cursor for a feed, or "" when the feed has
	// never been pulled.
	Get(ctx context.Context, feed string) (string, error)
	// Set stores the cursor for a feed, creating the row if needed.
	Set(ctx context.Context, feed string, cursor string) error
}
