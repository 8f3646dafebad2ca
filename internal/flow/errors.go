package flow

import (
	"errors"
	"fmt"

	"ev-booking-gateway/internal/bookingapi"
	"ev-booking-gateway/internal/parse"
)

var (
	ErrInvalidStation    = errors.New("station id is required")
	ErrInvalidDate       = errors.New("date must be YYYY-MM-DD")
	ErrNotReady          = errors.New("time slots are not loaded")
	ErrSlotNotFound      = errors.New("time slot not found")
	ErrSlotUnavailable   = errors.New("time slot is not available")
	ErrNoSelection       = errors.New("no time slot selected")
	ErrSubmitInFlight    = errors.New("a booking is already being submitted")
	ErrBatteryRequired   = errors.New("battery percentage is required")
	ErrBatteryOutOfRange = parse.ErrBatteryRange
	ErrSuperseded        = errors.New("request superseded by a newer one")
)

// Kind classifies a failed backend interaction.
type Kind int

const (
	FetchFailed Kind = iota + 1
	BookingFailed
)

func (k Kind) String() string {
	switch k {
	case FetchFailed:
		return "fetch failed"
	case BookingFailed:
		return "booking failed"
	default:
		return "unknown"
	}
}

var fallbackMessages = map[Kind]string{
	FetchFailed:   "Failed to load time slots.",
	BookingFailed: "Booking failed. Please try again.",
}

// Error is a backend failure surfaced to the user. Message is the server's
// message when it sent one, else a generic fallback.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) *Error {
	msg := bookingapi.ServerMessage(err)
	if msg == "" {
		msg = fallbackMessages[kind]
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}
