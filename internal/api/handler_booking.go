package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ev-booking-gateway/internal/flow"
	"ev-booking-gateway/internal/model"
	"ev-booking-gateway/internal/mw"
	"ev-booking-gateway/internal/parse"
	"ev-booking-gateway/internal/store"
)

// FetchSlots handles GET /api/stations/:id/time-slots?date=YYYY-MM-DD.
// It (re)loads the caller's flow and returns its view.
func (h *Handler) FetchSlots(c *gin.Context) {
	sess := session(c)
	f := h.flows.Get(sess)
	stationID := c.Param("id")

	err := f.FetchSlots(c.Request.Context(), stationID, c.Query("date"))
	view := f.View()
	if err != nil {
		flowError(c, err, view)
		return
	}

	if view.State == flow.StateReady && view.StationID == stationID {
		slots := make([]model.TimeSlot, 0, len(view.Slots))
		for _, s := range view.Slots {
			slots = append(slots, s.TimeSlot)
		}
		if err := h.store.ReplaceSlots(c.Request.Context(), stationID, view.Date, time.Now().UTC(), slots); err != nil {
			mw.LoggerFrom(c).Warn("failed to persist slot snapshot", zap.String("station", stationID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, view)
}

// CachedSlots handles GET /api/stations/:id/time-slots/cached?date=YYYY-MM-DD,
// the last persisted snapshot. It is always marked stale.
func (h *Handler) CachedSlots(c *gin.Context) {
	date, err := parse.Date(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": flow.ErrInvalidDate.Error()})
		return
	}

	snap, err := h.store.CachedSlots(c.Request.Context(), c.Param("id"), date)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached time slots"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read cached time slots"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stationId": snap.StationID,
		"date":      snap.Date,
		"slots":     snap.Slots,
		"fetchedAt": snap.FetchedAt,
		"stale":     true,
	})
}

// GetBookingState handles GET /api/booking.
func (h *Handler) GetBookingState(c *gin.Context) {
	c.JSON(http.StatusOK, h.flows.Get(session(c)).View())
}

type selectSlotRequest struct {
	SlotID string `json:"slotId" binding:"required"`
}

// SelectSlot handles POST /api/booking/selection.
func (h *Handler) SelectSlot(c *gin.Context) {
	var req selectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slotId is required"})
		return
	}

	f := h.flows.Get(session(c))
	if err := f.SelectSlot(req.SlotID); err != nil {
		flowError(c, err, f.View())
		return
	}
	c.JSON(http.StatusOK, f.View())
}

// CancelSelection handles DELETE /api/booking/selection.
func (h *Handler) CancelSelection(c *gin.Context) {
	f := h.flows.Get(session(c))
	if err := f.CancelSelection(); err != nil {
		flowError(c, err, f.View())
		return
	}
	c.JSON(http.StatusOK, f.View())
}

type confirmRequest struct {
	// number or string such as "45%"
	BatteryPercentage json.RawMessage `json:"batteryPercentage"`
}

func (r confirmRequest) battery() (*int, error) {
	raw := strings.TrimSpace(string(r.BatteryPercentage))
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(r.BatteryPercentage, &s); err != nil {
		s = raw
	}
	pct, err := parse.Battery(s)
	if errors.Is(err, parse.ErrEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pct, nil
}

// ConfirmBooking handles POST /api/booking/confirm.
func (h *Handler) ConfirmBooking(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	f := h.flows.Get(session(c))
	battery, err := req.battery()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "view": f.View()})
		return
	}

	// The write outlives a disconnecting client; the flow's request timeout still bounds it.
	booked, err := f.ConfirmBooking(context.WithoutCancel(c.Request.Context()), battery)
	if err != nil {
		flowError(c, err, f.View())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": booked.Result, "view": f.View()})
}

// ListBookings handles GET /api/bookings, the caller's local booking ledger.
func (h *Handler) ListBookings(c *gin.Context) {
	recs, err := h.store.ListBookings(c.Request.Context(), session(c).Key())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bookings"})
		return
	}
	if recs == nil {
		recs = []model.BookingRecord{}
	}
	c.JSON(http.StatusOK, recs)
}
