package model

import (
	"encoding/json"
	"time"
)

// BatteryDetails carries the vehicle's state of charge at booking time.
type BatteryDetails struct {
	InitialPercentage int `json:"initialPercentage"`
}

// BookingRequest is sent once per confirmed slot selection.
type BookingRequest struct {
	StationID      string         `json:"stationId"`
	TimeSlotID     string         `json:"timeSlotId"`
	BatteryDetails BatteryDetails `json:"batteryDetails"`
}

// BookingResult is the backend's response to a booking. Its shape is owned by the backend.
type BookingResult struct {
	Raw json.RawMessage
}

// MarshalJSON writes the raw server payload back out unchanged.
func (r BookingResult) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

// UnmarshalJSON keeps a copy of the raw payload.
func (r *BookingResult) UnmarshalJSON(b []byte) error {
	r.Raw = append(r.Raw[:0], b...)
	return nil
}

// Empty reports whether the server returned no usable object.
func (r BookingResult) Empty() bool {
	s := string(r.Raw)
	return s == "" || s == "null"
}

// ID makes a best-effort lookup of the booking identifier, checking "id", "_id"
// and the same keys under "booking". It returns "" when none is present.
func (r BookingResult) ID() string {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(r.Raw, &top); err != nil {
		return ""
	}
	if id := idFrom(top); id != "" {
		return id
	}
	if nested, ok := top["booking"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err == nil {
			return idFrom(inner)
		}
	}
	return ""
}

func idFrom(m map[string]json.RawMessage) string {
	for _, key := range []string{"id", "_id"} {
		raw, ok := m[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// BookingRecord is the local ledger entry for a booking the backend accepted.
type BookingRecord struct {
	ID                int64     `gorm:"primaryKey" json:"id"`
	UserKey           string    `gorm:"size:128;index;not null" json:"-"`
	RemoteID          string    `gorm:"size:128" json:"remoteId"`
	StationID         string    `gorm:"size:128;not null" json:"stationId"`
	Date              string    `gorm:"size:10;not null" json:"date"`
	TimeSlotID        string    `gorm:"size:128;not null" json:"timeSlotId"`
	StartTime         string    `gorm:"size:32" json:"startTime"`
	EndTime           string    `gorm:"size:32" json:"endTime"`
	InitialPercentage int       `gorm:"not null" json:"initialPercentage"`
	Payload           string    `gorm:"type:text" json:"-"`
	CreatedAt         time.Time `gorm:"not null" json:"createdAt"`
}

// SlotSnapshot is a persisted copy of one slot from the most recent fetch of a station/date.
type SlotSnapshot struct {
	StationID      string    `gorm:"primaryKey;size:128"`
	Date           string    `gorm:"primaryKey;size:10"`
	SlotID         string    `gorm:"primaryKey;size:128"`
	Position       int       `gorm:"not null"`
	StartTime      string    `gorm:"size:32"`
	EndTime        string    `gorm:"size:32"`
	AvailableSpots int       `gorm:"not null"`
	Status         string    `gorm:"size:16;not null"`
	FetchedAt      time.Time `gorm:"not null"`
}

// TimeSlot converts the row back to the wire type.
func (s SlotSnapshot) TimeSlot() TimeSlot {
	return TimeSlot{
		ID:             s.SlotID,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		AvailableSpots: s.AvailableSpots,
		Status:         SlotStatus(s.Status),
	}
}
