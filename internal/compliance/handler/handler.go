package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kuruma/internal/compliance"
	"kuruma/internal/compliance/models"
	id "kuruma/pkg/domain"
	dErrors "kuruma/pkg/domain-errors"
	"kuruma/pkg/platform/httputil"
	"kuruma/pkg/platform/middleware/auth"
	"kuruma/pkg/requestcontext"
)

// Service defines the compliance operations exposed over HTTP.
type Service interface {
	EvaluateCounters(ctx context.Context, counters compliance.Counters) (*models.Report, error)
	Status(ctx context.Context, accountID id.AccountID) (*models.Report, error)
	OpenListing(ctx context.Context, accountID id.AccountID) (*models.Report, error)
	CloseListing(ctx context.Context, accountID id.AccountID) (*models.Report, error)
	RecordSale(ctx context.Context, accountID id.AccountID, soldAt time.Time) (*models.Report, error)
	RegisterAccount(ctx context.Context, accountType compliance.AccountType) (*models.Account, error)
}

// Handler serves compliance, listing and sale endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator auth.JWTValidator
}

func New(service Service, logger *slog.Logger, jwtValidator auth.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the routes. Evaluation of raw counters and account
// registration are public; everything scoped to an account needs a bearer
// token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/evaluate", h.HandleEvaluate)
	r.Post("/accounts", h.HandleRegisterAccount)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.jwtValidator, h.logger))
		r.Get("/compliance/status", h.HandleStatus)
		r.Post("/listings", h.HandleOpenListing)
		r.Delete("/listings", h.HandleCloseListing)
		r.Post("/sales", h.HandleRecordSale)
	})
}

func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.service.EvaluateCounters(ctx, req.Counters())
	if err != nil {
		h.writeServiceError(ctx, w, "evaluate counters", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReportFrom(report))
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.accountReport(w, r, "load status", h.service.Status, http.StatusOK)
}

func (h *Handler) HandleOpenListing(w http.ResponseWriter, r *http.Request) {
	h.accountReport(w, r, "open listing", h.service.OpenListing, http.StatusCreated)
}

func (h *Handler) HandleCloseListing(w http.ResponseWriter, r *http.Request) {
	h.accountReport(w, r, "close listing", h.service.CloseListing, http.StatusOK)
}

func (h *Handler) HandleRecordSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	accountID, ok := h.requireAccount(ctx, w)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecordSaleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.service.RecordSale(ctx, accountID, req.soldAt())
	if err != nil {
		h.writeServiceError(ctx, w, "record sale", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ReportFrom(report))
}

func (h *Handler) HandleRegisterAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterAccountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, err := h.service.RegisterAccount(ctx, req.accountType)
	if err != nil {
		h.writeServiceError(ctx, w, "register account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, AccountFrom(account))
}

type accountOperation func(ctx context.Context, accountID id.AccountID) (*models.Report, error)

func (h *Handler) accountReport(w http.ResponseWriter, r *http.Request, op string, fn accountOperation, status int) {
	ctx := r.Context()
	accountID, ok := h.requireAccount(ctx, w)
	if !ok {
		return
	}

	report, err := fn(ctx, accountID)
	if err != nil {
		h.writeServiceError(ctx, w, op, err)
		return
	}
	httputil.WriteJSON(w, status, ReportFrom(report))
}

func (h *Handler) requireAccount(ctx context.Context, w http.ResponseWriter) (id.AccountID, bool) {
	accountID := requestcontext.AccountID(ctx)
	if accountID.IsNil() {
		// RequireAuth guarantees an account; reaching here is a wiring bug.
		h.logger.ErrorContext(ctx, "account missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.AccountID{}, false
	}
	return accountID, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code, _ := dErrors.Is(err)
	level := slog.LevelWarn
	if httputil.StatusFor(code) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "failed to "+op,
		"request_id", requestcontext.RequestID(ctx),
		"account_id", requestcontext.AccountID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
