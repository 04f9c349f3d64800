package handler

import (
	"net/http"

	"hyip-ledger/internal/services"
)

// @Summary Initiate a deposit
// @Description Records a draft deposit with the amount payable through the gateway
// @Tags deposits
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Success 201 {object} models.Deposit
// @Router /deposits [post]
func (h *Handler) initiateDeposit(w http.ResponseWriter, r *http.Request) {
	var req services.DepositRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = userID(r)

	deposit, err := h.svc.Deposits.Initiate(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, deposit)
}

func (h *Handler) markDepositPending(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deposit, err := h.svc.Deposits.MarkPending(r.Context(), userID(r), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deposit)
}

// approveDeposit is also the gateway callback target; repeating it never credits twice.
func (h *Handler) approveDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deposit, err := h.svc.Deposits.UpdateUserData(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deposit)
}

func (h *Handler) rejectDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body feedbackBody
	if !h.decode(w, r, &body) {
		return
	}

	deposit, err := h.svc.Deposits.Reject(r.Context(), id, body.Message)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deposit)
}
