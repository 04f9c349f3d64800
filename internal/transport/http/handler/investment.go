package handler

import (
	"net/http"
	"time"

	"hyip-ledger/internal/models"

	"github.com/go-chi/chi/v5/middleware"
)

// @Summary Purchase a plan
// @Description Buys a plan, or schedules repeated purchases when schedule is set
// @Tags investments
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param request body models.PurchaseRequest true "Purchase request"
// @Success 201 {object} models.Investment
// @Failure 404 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /investments [post]
func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	var req models.PurchaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = userID(r)

	if req.Schedule {
		schedule, err := h.svc.Investments.Schedule(r.Context(), req)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, schedule)
		return
	}

	inv, err := h.svc.Investments.Purchase(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, inv)
}

// @Summary Release held capital
// @Tags investments
// @Produce json
// @Param X-User-ID header string true "User ID"
// @Param id path int true "Investment ID"
// @Success 200 {object} models.LedgerEntry
// @Failure 409 {object} map[string]interface{}
// @Router /investments/{id}/capital [post]
func (h *Handler) releaseCapital(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.svc.Investments.ReleaseCapital(r.Context(), userID(r), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	var plan models.Plan
	if !h.decode(w, r, &plan) {
		return
	}

	created, err := h.svc.Investments.CreatePlan(r.Context(), plan)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

type registerBody struct {
	UserID     int64 `json:"userId" validate:"required,gt=0"`
	ReferrerID int64 `json:"referrerId" validate:"gte=0"`
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !h.decode(w, r, &body) {
		return
	}

	user, err := h.svc.Referrals.Register(r.Context(), body.UserID, body.ReferrerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) ranking(w http.ResponseWriter, r *http.Request) {
	progress, err := h.svc.Rankings.Status(r.Context(), userID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) awardRankingBonus(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Rankings.AwardBonuses(r.Context(), userID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

type triggerBody struct {
	Job   string    `json:"job" validate:"required,oneof=accrual schedule staking_maturity"`
	Cycle int64     `json:"cycle" validate:"gte=0"`
	At    time.Time `json:"at"`
}

// runTrigger executes a periodic job inline, for operators replaying a missed tick.
func (h *Handler) runTrigger(w http.ResponseWriter, r *http.Request) {
	var body triggerBody
	if !h.decode(w, r, &body) {
		return
	}

	result, err := h.svc.Triggers.Run(r.Context(), models.TriggerMessage{
		ID:    middleware.GetReqID(r.Context()),
		Job:   body.Job,
		Cycle: body.Cycle,
		At:    body.At,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
