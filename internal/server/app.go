// Package server wires the application together: database, migrations,
// provider client, feed pullers, payment reconciliation and the inbound
// HTTP surface, with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dverhagen/twikeysync/internal/docstore"
	"github.com/dverhagen/twikeysync/internal/feed"
	"github.com/dverhagen/twikeysync/internal/logging"
	"github.com/dverhagen/twikeysync/internal/reconcile"
	"github.com/dverhagen/twikeysync/internal/repositories/repomanager"
	"github.com/dverhagen/twikeysync/internal/server/config"
	"github.com/dverhagen/twikeysync/internal/server/services"
	"github.com/dverhagen/twikeysync/internal/twikey"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	rm     repomanager.RepositoryManager

	invoiceService     *services.InvoiceService
	transactionService *services.TransactionService

	mandatePuller *feed.Puller
	invoicePuller *feed.Puller

	httpServer *HTTPServer
}

func NewApp(c *config.Config) (*App, error) {

	slog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slog)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()

	tw, err := twikey.NewClient(twikey.Config{
		BaseURL:    c.BaseURL(),
		AppURL:     c.AppURL(),
		APIKey:     c.APIKey,
		MerchantID: c.MerchantID,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("provider client init error: %w", err)
	}

	pdfs := docstore.NewS3Store(docstore.Config{
		RootUser:     c.S3RootUser,
		RootPassword: c.S3RootPassword,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})

	is := services.NewInvoiceService(db, rm, tw, pdfs, c, logger)
	ts := services.NewTransactionService(db, rm, tw, c, logger)

	cursors := rm.Cursors(db)
	mandatePuller := feed.NewPuller("mandates", tw.Document, feed.NewMandateSink(db, rm, logger), cursors, logger)
	invoicePuller := feed.NewPuller("invoices", tw.Invoice, feed.NewInvoiceSink(is, logger), cursors, logger)

	// Local edits to remote-linked invoices trigger a drain of the invoice
	// feed so the remote copy is re-read instead of pushed blindly.
	is.SetFeedSyncer(invoicePuller)

	rec := reconcile.New(db, rm, logger)
	httpServer := NewHTTPServer(c.WebhookAddr, logger, rec, ts)

	return &App{
		config:             c,
		logger:             logger,
		db:                 db,
		rm:                 rm,
		invoiceService:     is,
		transactionService: ts,
		mandatePuller:      mandatePuller,
		invoicePuller:      invoicePuller,
		httpServer:         httpServer,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// PullFeeds drains both change feeds once. Errors from one feed do not
// stop the other.
func (app *App) PullFeeds(ctx context.Context) error {
	var firstErr error
	for _, p := range []*feed.Puller{app.mandatePuller, app.invoicePuller} {
		if err := p.Pull(ctx); err != nil {
			app.logger.Error(ctx, "feed pull failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startFeedLoop(ctx context.Context) {
	ticker := time.NewTicker(app.config.PullInterval)
	defer ticker.Stop()

	app.PullFeeds(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.PullFeeds(ctx)
		}
	}
}

// RunMigrations applies pending schema migrations.
func (app *App) RunMigrations(ctx context.Context) error {
	return app.rm.RunMigrations(ctx, app.db)
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startFeedLoop(ctx)
	}()

	wg.Wait()

	return app.db.Close()
}
