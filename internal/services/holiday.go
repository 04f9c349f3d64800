package services

import (
	"fmt"
	"time"

	"hyip-ledger/internal/config"
	"hyip-ledger/internal/models"
)

// HolidayPolicy decides which days block withdrawal submission and approval.
type HolidayPolicy struct {
	offDays  map[time.Weekday]bool
	dates    map[string]bool
	override bool
}

func NewHolidayPolicy(cfg config.HolidayConfig) *HolidayPolicy {
	h := &HolidayPolicy{
		offDays:  make(map[time.Weekday]bool, len(cfg.OffDays)),
		dates:    make(map[string]bool, len(cfg.Dates)),
		override: cfg.Override,
	}
	for _, d := range cfg.OffDays {
		h.offDays[d] = true
	}
	for _, d := range cfg.Dates {
		h.dates[d.Format(time.DateOnly)] = true
	}
	return h
}

func (h *HolidayPolicy) IsHoliday(t time.Time) bool {
	return h.offDays[t.Weekday()] || h.dates[t.Format(time.DateOnly)]
}

// NextWorkingDay returns t itself when it is a working day, otherwise the same clock
// time on the first following working day. A calendar with no working day returns t.
func (h *HolidayPolicy) NextWorkingDay(t time.Time) time.Time {
	next := t
	for i := 0; i < 366; i++ {
		if !h.IsHoliday(next) {
			return next
		}
		next = next.AddDate(0, 0, 1)
	}
	return t
}

// Check returns models.ErrHoliday when t is a holiday and the override is off.
func (h *HolidayPolicy) Check(t time.Time) error {
	if h.override || !h.IsHoliday(t) {
		return nil
	}
	return fmt.Errorf("%w: next working day is %s", models.ErrHoliday, h.NextWorkingDay(t).Format(time.DateOnly))
}
