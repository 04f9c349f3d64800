package handler

import (
	"net/http"

	"hyip-ledger/internal/services"
)

type feedbackBody struct {
	Message string `json:"message" validate:"max=1000"`
}

// @Summary Request a withdrawal
// @Description Creates a draft withdrawal; no balance moves until it is submitted
// @Tags withdrawals
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Success 201 {object} models.Withdrawal
// @Router /withdrawals [post]
func (h *Handler) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req services.WithdrawalRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = userID(r)

	withdrawal, err := h.svc.Withdrawals.Request(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, withdrawal)
}

type submitBody struct {
	FormData string `json:"formData" validate:"max=4096"`
}

// @Summary Submit a withdrawal
// @Description Debits the interest wallet and moves the withdrawal to pending
// @Tags withdrawals
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param id path int true "Withdrawal ID"
// @Success 200 {object} models.Withdrawal
// @Failure 422 {object} map[string]interface{}
// @Router /withdrawals/{id}/submit [post]
func (h *Handler) submitWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body submitBody
	if !h.decode(w, r, &body) {
		return
	}

	withdrawal, err := h.svc.Withdrawals.Submit(r.Context(), userID(r), id, body.FormData)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawal)
}

func (h *Handler) approveWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body feedbackBody
	if !h.decode(w, r, &body) {
		return
	}

	withdrawal, err := h.svc.Withdrawals.Approve(r.Context(), id, body.Message)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawal)
}

func (h *Handler) rejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body feedbackBody
	if !h.decode(w, r, &body) {
		return
	}

	withdrawal, err := h.svc.Withdrawals.Reject(r.Context(), id, body.Message)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawal)
}
