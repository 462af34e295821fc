package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/logging"
	"github.com/dverhagen/twikeysync/internal/server/services"
	"github.com/dverhagen/twikeysync/internal/twikey"
)

// WebhookProcessor is the reconciler surface the HTTP layer drives.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, status, ref string) error
	PollPending(ctx context.Context, ref string) error
}

// CheckoutPreparer prepares tokenized checkouts for the business layer.
type CheckoutPreparer interface {
	PrepareTokenizedCheckout(ctx context.Context, req *services.CheckoutRequest) (string, error)
}

// HTTPServer serves the inbound provider webhook plus the small local API
// (status poll, checkout preparation).
type HTTPServer struct {
	address   string
	logger    logging.Logger
	processor WebhookProcessor
	checkouts CheckoutPreparer
}

func NewHTTPServer(address string, logger logging.Logger, processor WebhookProcessor, checkouts CheckoutPreparer) *HTTPServer {
	return &HTTPServer{
		address:   address,
		logger:    logger.With("module", "http_server"),
		processor: processor,
		checkouts: checkouts,
	}
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/checkout", s.handleCheckout)
	return mux
}

// handleWebhook acknowledges provider notifications. The provider retries
// anything that is not a 200, so processing outcomes that are final (the
// state machine landing on error included) still acknowledge; only an
// unresolvable reference reports 404 and a missing one 400.
func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	status := r.FormValue("status")
	ref := r.FormValue("ref")

	err := s.processor.ProcessWebhook(r.Context(), status, ref)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, common.ErrNotFound):
		http.Error(w, "unknown reference", http.StatusNotFound)
	case errors.Is(err, common.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error(r.Context(), "webhook processing failed", "ref", ref, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleStatus re-evaluates a pending transaction, used by the checkout
// return page when the webhook has not landed yet.
func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	ref := r.FormValue("ref")
	if ref == "" {
		http.Error(w, "ref is required", http.StatusBadRequest)
		return
	}

	err := s.processor.PollPending(r.Context(), ref)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, common.ErrNotFound):
		http.Error(w, "unknown reference", http.StatusNotFound)
	case errors.Is(err, common.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error(r.Context(), "status poll failed", "ref", ref, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *HTTPServer) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	amount, _ := strconv.ParseFloat(r.FormValue("amount"), 64)
	customerNumber, _ := strconv.ParseInt(r.FormValue("customer_number"), 10, 64)

	url, err := s.checkouts.PrepareTokenizedCheckout(r.Context(), &services.CheckoutRequest{
		Reference: r.FormValue("ref"),
		Amount:    amount,
		Customer: twikey.Customer{
			Number: customerNumber,
			Name:   r.FormValue("customer_name"),
			Email:  r.FormValue("customer_email"),
			Locale: r.FormValue("locale"),
		},
		RedirectURL: r.FormValue("redirect_url"),
	})
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"url": url})
	case errors.Is(err, common.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, common.ErrNotConfigured):
		http.Error(w, "integration disabled", http.StatusServiceUnavailable)
	default:
		s.logger.Error(r.Context(), "checkout preparation failed", "ref", r.FormValue("ref"), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Run starts the HTTP server and shuts it down gracefully when the
// context is canceled.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.address, Handler: s.routes()}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
