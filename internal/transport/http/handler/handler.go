package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	_ "hyip-ledger/docs"
	"hyip-ledger/internal/metrics"
	"hyip-ledger/internal/models"
	"hyip-ledger/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

const userIDHeader = "X-User-ID"

type ctxKey struct{}

type Handler struct {
	svc      *services.Services
	validate *validator.Validate
	log      *zap.Logger
}

// NewRouter mounts the user and admin API. Users are identified by the X-User-ID header
// set by the identity provider in front of this service.
func NewRouter(svc *services.Services, rec *metrics.Recorder, log *zap.Logger) http.Handler {
	h := &Handler{
		svc:      svc,
		validate: validator.New(),
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rec.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", rec.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)

			r.Get("/wallets/{kind}", h.getBalance)
			r.Get("/ledger", h.getLedger)
			r.Post("/transfers", h.transfer)

			r.Post("/investments", h.purchase)
			r.Post("/investments/{id}/capital", h.releaseCapital)

			r.Post("/withdrawals", h.requestWithdrawal)
			r.Post("/withdrawals/{id}/submit", h.submitWithdrawal)

			r.Post("/deposits", h.initiateDeposit)
			r.Post("/deposits/{id}/pending", h.markDepositPending)

			r.Post("/pools/{id}/invest", h.investPool)
			r.Post("/staking", h.stake)

			r.Get("/ranking", h.ranking)
			r.Post("/ranking/bonus", h.awardRankingBonus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/users", h.registerUser)
			r.Post("/plans", h.createPlan)
			r.Post("/balance", h.adjustBalance)

			r.Post("/withdrawals/{id}/approve", h.approveWithdrawal)
			r.Post("/withdrawals/{id}/reject", h.rejectWithdrawal)
			r.Post("/deposits/{id}/approve", h.approveDeposit)
			r.Post("/deposits/{id}/reject", h.rejectDeposit)

			r.Post("/pools/{id}/dispatch", h.dispatchPool)
			r.Get("/reconcile/{user}", h.reconcile)
			r.Post("/triggers", h.runTrigger)
		})
	})

	return r
}

func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get(userIDHeader), 10, 64)
		if err != nil || userID <= 0 {
			h.writeError(w, http.StatusUnauthorized, "Missing or invalid "+userIDHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxKey{}).(int64)
	return id
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// decode reads a JSON body into v and runs the struct validation tags. An empty body
// decodes as the zero value.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return false
	}
	return true
}

func (h *Handler) walletKind(w http.ResponseWriter, value string) (models.WalletKind, bool) {
	if err := h.validate.Var(value, "required,oneof=deposit interest"); err != nil {
		h.writeError(w, http.StatusBadRequest, "Wallet must be deposit or interest")
		return "", false
	}
	return models.WalletKind(value), true
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSON(w, statusCode, map[string]interface{}{
		"error":   http.StatusText(statusCode),
		"message": message,
		"code":    statusCode,
	})
}

// writeServiceError maps the models error taxonomy onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
	}
	h.writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case models.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict
	case models.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
