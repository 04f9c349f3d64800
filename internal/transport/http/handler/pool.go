package handler

import (
	"net/http"

	"hyip-ledger/internal/services"

	"github.com/shopspring/decimal"
)

func (h *Handler) investPool(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req services.PoolInvestRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = userID(r)
	req.PoolID = id

	stake, err := h.svc.Pools.Invest(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stake)
}

type dispatchBody struct {
	Rate decimal.Decimal `json:"rate"`
}

func (h *Handler) dispatchPool(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body dispatchBody
	if !h.decode(w, r, &body) {
		return
	}

	paid, err := h.svc.Pools.Dispatch(r.Context(), id, body.Rate)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paid)
}

func (h *Handler) stake(w http.ResponseWriter, r *http.Request) {
	var req services.StakeRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = userID(r)

	stake, err := h.svc.Staking.Stake(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, stake)
}
