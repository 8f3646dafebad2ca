package flow

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ev-booking-gateway/internal/bookingapi"
	"ev-booking-gateway/internal/model"
	"ev-booking-gateway/internal/parse"
)

// BookingAPI is the part of the backend client a flow needs.
type BookingAPI interface {
	FetchSlots(ctx context.Context, sess bookingapi.Session, stationID, date string) ([]model.TimeSlot, error)
	CreateBooking(ctx context.Context, sess bookingapi.Session, req model.BookingRequest) (model.BookingResult, error)
}

// Booked describes a booking the backend accepted.
type Booked struct {
	StationID string
	Date      string
	Slot      model.TimeSlot // as it was selected, before the local decrement
	Battery   int
	Result    model.BookingResult
}

// Flow is one user's slot booking flow for a station and date. The slot list it
// holds is a cache of the backend's answer: replaced on every fetch and only
// otherwise changed by the local decrement after a successful booking.
//
// All methods are safe for concurrent use.
type Flow struct {
	api     BookingAPI
	timeout time.Duration
	logger  *zap.Logger

	mu        sync.Mutex
	session   bookingapi.Session
	state     State
	stationID string
	date      string
	slots     []model.TimeSlot
	selected  *model.TimeSlot
	lastErr   *Error
	fetchGen  uint64
	cancel    context.CancelFunc
	listeners []func(Booked)
}

// New creates an idle flow. timeout bounds each backend call; zero means no bound
// beyond the caller's context.
func New(api BookingAPI, sess bookingapi.Session, timeout time.Duration, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		api:     api,
		session: sess,
		timeout: timeout,
		logger:  logger,
		state:   StateIdle,
	}
}

// SetSession swaps the credential used for subsequent calls.
func (f *Flow) SetSession(sess bookingapi.Session) {
	f.mu.Lock()
	f.session = sess
	f.mu.Unlock()
}

// OnBooked registers fn to be called after every accepted booking.
func (f *Flow) OnBooked(fn func(Booked)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

func (f *Flow) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout > 0 {
		return context.WithTimeout(ctx, f.timeout)
	}
	return context.WithCancel(ctx)
}

// FetchSlots loads the slots of stationID on date and replaces the local set.
// A fetch started while another is in flight cancels the older one, which then
// returns ErrSuperseded and leaves the state alone. On failure the flow moves to
// StateError with no slots.
func (f *Flow) FetchSlots(ctx context.Context, stationID, date string) error {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return ErrInvalidStation
	}
	day, err := parse.Date(date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	f.mu.Lock()
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.fetchGen++
	gen := f.fetchGen
	reqCtx, cancel := f.withTimeout(ctx)
	f.cancel = cancel
	f.state = StateLoading
	f.stationID = stationID
	f.date = day
	f.slots = nil
	f.selected = nil
	f.lastErr = nil
	sess := f.session
	f.mu.Unlock()

	slots, err := f.api.FetchSlots(reqCtx, sess, stationID, day)
	cancel()

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.fetchGen {
		f.logger.Debug("discarding superseded slot fetch", zap.String("station", stationID), zap.String("date", day))
		return ErrSuperseded
	}
	f.cancel = nil

	if err != nil {
		f.lastErr = newError(FetchFailed, err)
		f.state = StateError
		f.logger.Info("slot fetch failed", zap.String("station", stationID), zap.String("date", day), zap.Error(err))
		return f.lastErr
	}

	f.slots = append([]model.TimeSlot(nil), slots...)
	f.state = StateReady
	return nil
}

// SelectSlot picks the slot with the given id for confirmation. Only slots with
// free spots that are not booked can be picked, and only from StateReady.
func (f *Flow) SelectSlot(slotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateReady:
	case StateSubmitting:
		return ErrSubmitInFlight
	default:
		return ErrNotReady
	}

	i := f.indexOf(slotID)
	if i < 0 {
		return ErrSlotNotFound
	}
	if !f.slots[i].Selectable() {
		return ErrSlotUnavailable
	}

	slot := f.slots[i]
	f.selected = &slot
	f.lastErr = nil
	f.state = StateConfirming
	return nil
}

// CancelSelection drops the pending selection and returns to StateReady.
func (f *Flow) CancelSelection() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateConfirming:
		f.selected = nil
		f.state = StateReady
		return nil
	case StateSubmitting:
		return ErrSubmitInFlight
	default:
		return ErrNoSelection
	}
}

// ConfirmBooking submits the selected slot with the vehicle's battery level.
// Exactly one request is sent per confirmation: while it is in flight every
// other call returns ErrSubmitInFlight without touching the network.
//
// On success the selected slot's free spots drop by one locally and the result
// is returned and passed to OnBooked listeners. On failure local slots are left
// as they were. Either way the selection is cleared and the flow is Ready.
func (f *Flow) ConfirmBooking(ctx context.Context, battery *int) (*Booked, error) {
	f.mu.Lock()
	switch f.state {
	case StateConfirming:
	case StateSubmitting:
		f.mu.Unlock()
		return nil, ErrSubmitInFlight
	default:
		f.mu.Unlock()
		return nil, ErrNoSelection
	}
	if battery == nil {
		f.mu.Unlock()
		return nil, ErrBatteryRequired
	}
	if err := parse.CheckBattery(*battery); err != nil {
		f.mu.Unlock()
		return nil, ErrBatteryOutOfRange
	}

	slot := *f.selected
	req := model.BookingRequest{
		StationID:      f.stationID,
		TimeSlotID:     slot.ID,
		BatteryDetails: model.BatteryDetails{InitialPercentage: *battery},
	}
	date := f.date
	sess := f.session
	f.state = StateSubmitting
	f.mu.Unlock()

	reqCtx, cancel := f.withTimeout(ctx)
	result, err := f.api.CreateBooking(reqCtx, sess, req)
	cancel()

	f.mu.Lock()
	f.selected = nil
	f.state = StateReady

	if err != nil {
		f.lastErr = newError(BookingFailed, err)
		f.mu.Unlock()
		f.logger.Info("booking rejected", zap.String("station", req.StationID), zap.String("slot", slot.ID), zap.Error(err))
		return nil, f.lastErr
	}

	if i := f.indexOf(slot.ID); i >= 0 && f.slots[i].AvailableSpots > 0 {
		f.slots[i].AvailableSpots--
	}
	f.lastErr = nil
	listeners := slices.Clone(f.listeners)
	f.mu.Unlock()

	booked := Booked{
		StationID: req.StationID,
		Date:      date,
		Slot:      slot,
		Battery:   *battery,
		Result:    result,
	}
	for _, fn := range listeners {
		fn(booked)
	}
	return &booked, nil
}

// indexOf finds a slot by identifier. Callers hold f.mu.
func (f *Flow) indexOf(slotID string) int {
	for i := range f.slots {
		if f.slots[i].ID == slotID {
			return i
		}
	}
	return -1
}

// SlotView is a slot as the UI should render it.
type SlotView struct {
	model.TimeSlot
	Selectable bool `json:"selectable"`
}

// View is a point-in-time copy of a flow.
type View struct {
	State     State           `json:"state"`
	StationID string          `json:"stationId,omitempty"`
	Date      string          `json:"date,omitempty"`
	Slots     []SlotView      `json:"slots"`
	Selected  *model.TimeSlot `json:"selected,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// View returns a copy of the current state.
func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{
		State:     f.state,
		StationID: f.stationID,
		Date:      f.date,
		Slots:     make([]SlotView, 0, len(f.slots)),
	}
	for _, s := range f.slots {
		v.Slots = append(v.Slots, SlotView{
			TimeSlot:   s,
			Selectable: f.state == StateReady && s.Selectable(),
		})
	}
	if f.selected != nil {
		sel := *f.selected
		v.Selected = &sel
	}
	if f.lastErr != nil {
		v.Error = f.lastErr.Message
	}
	return v
}
