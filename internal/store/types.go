package store

import (
	"errors"
	"time"

	"ev-booking-gateway/internal/model"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrSubscriptionTaken is returned when a push endpoint is registered to another user.
var ErrSubscriptionTaken = errors.New("store: subscription belongs to another user")

// CachedSnapshot is the last persisted slot list for a station and date.
type CachedSnapshot struct {
	StationID string           `json:"stationId"`
	Date      string           `json:"date"`
	Slots     []model.TimeSlot `json:"slots"`
	FetchedAt time.Time        `json:"fetchedAt"`
}
