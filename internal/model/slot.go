package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SlotStatus is the backend's status of a time slot.
type SlotStatus string

const (
	SlotOpen   SlotStatus = "Open"
	SlotBooked SlotStatus = "Booked"
	SlotClosed SlotStatus = "Closed"
)

// UnmarshalJSON accepts the status in any letter case.
func (s *SlotStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("slot status: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open":
		*s = SlotOpen
	case "booked":
		*s = SlotBooked
	case "closed":
		*s = SlotClosed
	default:
		*s = SlotStatus(raw)
	}
	return nil
}

// TimeSlot is a bookable interval at a station as last reported by the backend.
type TimeSlot struct {
	ID             string     `json:"id"`
	StartTime      string     `json:"startTime"`
	EndTime        string     `json:"endTime"`
	AvailableSpots int        `json:"availableSpots"`
	Status         SlotStatus `json:"status"`
}

// Selectable reports whether a user may pick this slot.
func (s TimeSlot) Selectable() bool {
	return s.AvailableSpots > 0 && s.Status != SlotBooked
}

// SlotsResponse is the body of the time-slot listing endpoint.
type SlotsResponse struct {
	Slots []TimeSlot `json:"slots"`
}
