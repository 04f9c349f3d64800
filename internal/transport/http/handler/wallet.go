package handler

import (
	"errors"
	"net/http"
	"strconv"

	"hyip-ledger/internal/models"
	"hyip-ledger/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// @Summary Get wallet balance
// @Description Returns the committed balance of one of the caller's wallets
// @Tags wallets
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param kind path string true "Wallet kind" Enums(deposit, interest)
// @Success 200 {object} models.WalletBalanceResponse
// @Failure 400 {object} map[string]interface{}
// @Router /wallets/{kind} [get]
func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.walletKind(w, chi.URLParam(r, "kind"))
	if !ok {
		return
	}

	balance, err := h.svc.Wallets.Balance(r.Context(), userID(r), kind)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balance)
}

// @Summary Get wallet ledger
// @Tags wallets
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param wallet query string true "Wallet kind" Enums(deposit, interest)
// @Success 200 {array} models.LedgerEntry
// @Router /ledger [get]
func (h *Handler) getLedger(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.walletKind(w, r.URL.Query().Get("wallet"))
	if !ok {
		return
	}

	entries, err := h.svc.Wallets.Ledger(r.Context(), userID(r), kind)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

type transferBody struct {
	ToUserID int64             `json:"toUserId" validate:"required,gt=0"`
	Wallet   models.WalletKind `json:"wallet" validate:"required,oneof=deposit interest"`
	Amount   decimal.Decimal   `json:"amount"`
}

// @Summary Transfer balance
// @Description Moves balance to another user's wallet of the same kind. The sender pays the transfer fee.
// @Tags wallets
// @Accept json
// @Produce json
// @Router /transfers [post]
func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if !h.decode(w, r, &body) {
		return
	}

	result, err := h.svc.Wallets.Transfer(r.Context(), services.TransferRequest{
		FromUserID: userID(r),
		ToUserID:   body.ToUserID,
		Kind:       body.Wallet,
		Amount:     body.Amount,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// adjustBalance is the operator's manual add or subtract.
func (h *Handler) adjustBalance(w http.ResponseWriter, r *http.Request) {
	var req services.AdjustRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.svc.Wallets.Adjust(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// @Summary Reconcile wallets
// @Description Replays the ledger of a user's wallets against their balances
// @Tags admin
// @Produce json
// @Param user path int true "User ID"
// @Param wallet query string false "Wallet kind" Enums(deposit, interest)
// @Router /admin/reconcile/{user} [get]
func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	user, err := strconv.ParseInt(chi.URLParam(r, "user"), 10, 64)
	if err != nil || user <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	kinds := []models.WalletKind{models.WalletDeposit, models.WalletInterest}
	if q := r.URL.Query().Get("wallet"); q != "" {
		kind, ok := h.walletKind(w, q)
		if !ok {
			return
		}
		kinds = []models.WalletKind{kind}
	}

	status := http.StatusOK
	reports := make([]services.ReconcileReport, 0, len(kinds))
	for _, kind := range kinds {
		report, err := h.svc.Reconciler.Check(r.Context(), user, kind)
		if err != nil && !errors.Is(err, models.ErrIntegrity) {
			h.writeServiceError(w, err)
			return
		}
		if err != nil {
			status = http.StatusInternalServerError
		}
		reports = append(reports, *report)
	}
	h.writeJSON(w, status, reports)
}
