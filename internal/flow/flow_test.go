package flow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ev-booking-gateway/internal/bookingapi"
	"ev-booking-gateway/internal/model"
)

// mockAPI is a mock implementation of the BookingAPI interface.
type mockAPI struct {
	FetchSlotsFunc    func(ctx context.Context, sess bookingapi.Session, stationID, date string) ([]model.TimeSlot, error)
	CreateBookingFunc func(ctx context.Context, sess bookingapi.Session, req model.BookingRequest) (model.BookingResult, error)

	fetches  atomic.Int32
	bookings atomic.Int32
}

func (m *mockAPI) FetchSlots(ctx context.Context, sess bookingapi.Session, stationID, date string) ([]model.TimeSlot, error) {
	m.fetches.Add(1)
	return m.FetchSlotsFunc(ctx, sess, stationID, date)
}

func (m *mockAPI) CreateBooking(ctx context.Context, sess bookingapi.Session, req model.BookingRequest) (model.BookingResult, error) {
	m.bookings.Add(1)
	return m.CreateBookingFunc(ctx, sess, req)
}

func slotsOf(slots ...model.TimeSlot) func(context.Context, bookingapi.Session, string, string) ([]model.TimeSlot, error) {
	return func(context.Context, bookingapi.Session, string, string) ([]model.TimeSlot, error) {
		return append([]model.TimeSlot(nil), slots...), nil
	}
}

func result(raw string) model.BookingResult {
	var r model.BookingResult
	_ = json.Unmarshal([]byte(raw), &r)
	return r
}

var s1 = model.TimeSlot{ID: "s1", StartTime: "10:00", EndTime: "11:00", AvailableSpots: 1, Status: model.SlotOpen}

func readyFlow(t *testing.T, api *mockAPI) *Flow {
	t.Helper()
	f := New(api, bookingapi.Session{Token: "tok"}, time.Second, nil)
	require.NoError(t, f.FetchSlots(context.Background(), "st-1", "2025-03-01"))
	require.Equal(t, StateReady, f.View().State)
	return f
}

func intp(v int) *int { return &v }

func TestFlow_SuccessfulBookingDecrementsSlot(t *testing.T) {
	api := &mockAPI{
		FetchSlotsFunc: slotsOf(s1),
		CreateBookingFunc: func(ctx context.Context, sess bookingapi.Session, req model.BookingRequest) (model.BookingResult, error) {
			assert.Equal(t, "tok", sess.Token)
			assert.Equal(t, model.BookingRequest{
				StationID:      "st-1",
				TimeSlotID:     "s1",
				BatteryDetails: model.BatteryDetails{InitialPercentage: 45},
			}, req)
			return result(`{"id":"b-1"}`), nil
		},
	}
	f := readyFlow(t, api)

	var notified []Booked
	f.OnBooked(func(b Booked) { notified = append(notified, b) })

	require.NoError(t, f.SelectSlot("s1"))
	assert.Equal(t, StateConfirming, f.View().State)

	booked, err := f.ConfirmBooking(context.Background(), intp(45))
	require.NoError(t, err)
	assert.Equal(t, "b-1", booked.Result.ID())
	assert.Equal(t, "2025-03-01", booked.Date)
	assert.Equal(t, 1, booked.Slot.AvailableSpots)

	v := f.View()
	assert.Equal(t, StateReady, v.State)
	assert.Nil(t, v.Selected)
	require.Len(t, v.Slots, 1)
	assert.Equal(t, 0, v.Slots[0].AvailableSpots)
	assert.False(t, v.Slots[0].Selectable)
	assert.Empty(t, v.Error)

	assert.ErrorIs(t, f.SelectSlot("s1"), ErrSlotUnavailable)
	require.Len(t, notified, 1)
	assert.Equal(t, "s1", notified[0].Slot.ID)
}

func TestFlow_RejectedBookingLeavesSlotsUntouched(t *testing.T) {
	for _, tc := range []struct {
		name    string
		err     error
		message string
	}{
		{"conflict with message", &bookingapi.APIError{StatusCode: 409, Message: "Slot already taken"}, "Slot already taken"},
		{"server error without message", &bookingapi.APIError{StatusCode: 500}, "Booking failed. Please try again."},
		{"network failure", errors.New("connection reset"), "Booking failed. Please try again."},
	} {
		t.Run(tc.name, func(t *testing.T) {
			api := &mockAPI{
				FetchSlotsFunc: slotsOf(s1),
				CreateBookingFunc: func(context.Context, bookingapi.Session, model.BookingRequest) (model.BookingResult, error) {
					return model.BookingResult{}, tc.err
				},
			}
			f := readyFlow(t, api)
			require.NoError(t, f.SelectSlot("s1"))

			_, err := f.ConfirmBooking(context.Background(), intp(45))
			var flowErr *Error
			require.ErrorAs(t, err, &flowErr)
			assert.Equal(t, BookingFailed, flowErr.Kind)
			assert.Equal(t, tc.message, flowErr.Message)
			assert.ErrorIs(t, err, tc.err)

			v := f.View()
			assert.Equal(t, StateReady, v.State)
			assert.Nil(t, v.Selected)
			assert.Equal(t, 1, v.Slots[0].AvailableSpots)
			assert.True(t, v.Slots[0].Selectable)
			assert.Equal(t, tc.message, v.Error)

			assert.NoError(t, f.SelectSlot("s1"), "slot is selectable again")
		})
	}
}

func TestFlow_FetchFailure(t *testing.T) {
	fail := false
	api := &mockAPI{
		FetchSlotsFunc: func(ctx context.Context, sess bookingapi.Session, stationID, date string) ([]model.TimeSlot, error) {
			if fail {
				return nil, &bookingapi.APIError{StatusCode: 500, Message: "database unavailable"}
			}
			return []model.TimeSlot{s1}, nil
		},
	}
	f := readyFlow(t, api)

	fail = true
	err := f.FetchSlots(context.Background(), "st-1", "2025-03-02")
	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, FetchFailed, flowErr.Kind)

	v := f.View()
	assert.Equal(t, StateError, v.State)
	assert.Empty(t, v.Slots, "no stale slots are rendered after a failed fetch")
	assert.Equal(t, "database unavailable", v.Error)
	assert.ErrorIs(t, f.SelectSlot("s1"), ErrNotReady)
	assert.Equal(t, int32(2), api.fetches.Load(), "no automatic retry")
}

func TestFlow_FetchFailureFallbackMessage(t *testing.T) {
	api := &mockAPI{
		FetchSlotsFunc: func(context.Context, bookingapi.Session, string, string) ([]model.TimeSlot, error) {
			return nil, errors.New("dial tcp: refused")
		},
	}
	f := New(api, bookingapi.Session{Token: "tok"}, time.Second, nil)

	require.Error(t, f.FetchSlots(context.Background(), "st-1", "2025-03-01"))
	assert.Equal(t, "Failed to load time slots.", f.View().Error)
}

func TestFlow_FetchReplacesSnapshotWholesale(t *testing.T) {
	responses := [][]model.TimeSlot{
		{s1, {ID: "s2", AvailableSpots: 3, Status: model.SlotOpen}},
		{{ID: "s2", AvailableSpots: 2, Status: model.SlotOpen}, {ID: "s1", AvailableSpots: 4, Status: model.SlotOpen}},
	}
	call := 0
	api := &mockAPI{
		FetchSlotsFunc: func(context.Context, bookingapi.Session, string, string) ([]model.TimeSlot, error) {
			r := responses[call]
			call++
			return r, nil
		},
		CreateBookingFunc: func(context.Context, bookingapi.Session, model.BookingRequest) (model.BookingResult, error) {
			return result(`{"ok":true}`), nil
		},
	}
	f := readyFlow(t, api)

	require.NoError(t, f.SelectSlot("s2"))
	_, err := f.ConfirmBooking(context.Background(), intp(10))
	require.NoError(t, err)
	assert.Equal(t, 2, f.View().Slots[1].AvailableSpots)

	require.NoError(t, f.FetchSlots(context.Background(), "st-1", "2025-03-01"))
	v := f.View()
	require.Len(t, v.Slots, 2)
	assert.Equal(t, "s2", v.Slots[0].ID)
	assert.Equal(t, 2, v.Slots[0].AvailableSpots)
	assert.Equal(t, "s1", v.Slots[1].ID)
	assert.Equal(t, 4, v.Slots[1].AvailableSpots)
}

func TestFlow_DecrementByIdentityAfterReorder(t *testing.T) {
	api := &mockAPI{
		FetchSlotsFunc: slotsOf(
			model.TimeSlot{ID: "a", AvailableSpots: 5, Status: model.SlotOpen},
			model.TimeSlot{ID: "b", AvailableSpots: 5, Status: model.SlotOpen},
		),
		CreateBookingFunc: func(context.Context, bookingapi.Session, model.BookingRequest) (model.BookingResult, error) {
			return result(`{"id":"x"}`), nil
		},
	}
	f := readyFlow(t, api)

	require.NoError(t, f.SelectSlot("b"))
	_, err := f.ConfirmBooking(context.Background(), intp(50))
	require.NoError(t, err)

	v := f.View()
	assert.Equal(t, 5, v.Slots[0].AvailableSpots)
	assert.Equal(t, 4, v.Slots[1].AvailableSpots)
}

func TestFlow_SelectSlotPreconditions(t *testing.T) {
	api := &mockAPI{
		FetchSlotsFunc: slotsOf(
			s1,
			model.TimeSlot{ID: "full", AvailableSpots: 0, Status: model.SlotOpen},
			model.TimeSlot{ID: "booked", AvailableSpots: 2, Status: model.SlotBooked},
		),
	}

	idle := New(api, bookingapi.Session{Token: "tok"}, 0, nil)
	assert.ErrorIs(t, idle.SelectSlot("s1"), ErrNotReady)

	f := readyFlow(t, api)
	v := f.View()
	assert.True(t, v.Slots[0].Selectable)
	assert.False(t, v.Slots[1].Selectable)
	assert.False(t, v.Slots[2].Selectable)

	assert.ErrorIs(t, f.SelectSlot("full"), ErrSlotUnavailable)
	assert.ErrorIs(t, f.SelectSlot("booked"), ErrSlotUnavailable)
	assert.ErrorIs(t, f.SelectSlot("nope"), ErrSlotNotFound)
	assert.Equal(t, StateReady, f.View().State)

	require.NoError(t, f.SelectSlot("s1"))
	assert.ErrorIs(t, f.SelectSlot("s1"), ErrNotReady)
	for _, s := range f.View().Slots {
		assert.False(t, s.Selectable, "nothing is selectable while confirming")
	}
}

func TestFlow_CancelSelection(t *testing.T) {
	api := &mockAPI{FetchSlotsFunc: slotsOf(s1)}
	f := readyFlow(t, api)

	assert.ErrorIs(t, f.CancelSelection(), ErrNoSelection)
	require.NoError(t, f.SelectSlot("s1"))
	require.NoError(t, f.CancelSelection())

	v := f.View()
	assert.Equal(t, StateReady, v.State)
	assert.Nil(t, v.Selected)
	assert.Equal(t, 1, v.Slots[0].AvailableSpots)
	assert.Equal(t, int32(0), api.bookings.Load())
}

func TestFlow_ConfirmValidation(t *testing.T) {
	api := &mockAPI{FetchSlotsFunc: slotsOf(s1)}
	f := readyFlow(t, api)

	_, err := f.ConfirmBooking(context.Background(), intp(45))
	assert.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, f.SelectSlot("s1"))
	_, err = f.ConfirmBooking(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBatteryRequired)
	_, err = f.ConfirmBooking(context.Background(), intp(120))
	assert.ErrorIs(t, err, ErrBatteryOutOfRange)

	assert.Equal(t, StateConfirming, f.View().State, "validation failures keep the selection")
	assert.Equal(t, int32(0), api.bookings.Load())
}

func TestFlow_ConfirmIsSingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	api := &mockAPI{
		FetchSlotsFunc: slotsOf(s1),
		CreateBookingFunc: func(context.Context, bookingapi.Session, model.BookingRequest) (model.BookingResult, error) {
			close(entered)
			<-release
			return result(`{"id":"b-1"}`), nil
		},
	}
	f := readyFlow(t, api)
	require.NoError(t, f.SelectSlot("s1"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.ConfirmBooking(context.Background(), intp(45))
		assert.NoError(t, err)
	}()
	<-entered

	assert.Equal(t, StateSubmitting, f.View().State)
	for i := 0; i < 5; i++ {
		_, err := f.ConfirmBooking(context.Background(), intp(45))
		assert.ErrorIs(t, err, ErrSubmitInFlight)
	}
	assert.ErrorIs(t, f.FetchSlots(context.Background(), "st-1", "2025-03-01"), ErrSubmitInFlight)
	assert.ErrorIs(t, f.CancelSelection(), ErrSubmitInFlight)

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), api.bookings.Load())
	assert.Equal(t, 0, f.View().Slots[0].AvailableSpots)
}

func TestFlow_NewerFetchSupersedesOlder(t *testing.T) {
	firstStarted := make(chan struct{})
	api := &mockAPI{
		FetchSlotsFunc: func(ctx context.Context, sess bookingapi.Session, stationID, date string) ([]model.TimeSlot, error) {
			if date == "2025-03-01" {
				close(firstStarted)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return []model.TimeSlot{{ID: "late", AvailableSpots: 2, Status: model.SlotOpen}}, nil
		},
	}
	f := New(api, bookingapi.Session{Token: "tok"}, 5*time.Second, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- f.FetchSlots(context.Background(), "st-1", "2025-03-01") }()
	<-firstStarted

	require.NoError(t, f.FetchSlots(context.Background(), "st-1", "2025-03-02"))
	assert.ErrorIs(t, <-errCh, ErrSuperseded)

	v := f.View()
	assert.Equal(t, StateReady, v.State)
	assert.Equal(t, "2025-03-02", v.Date)
	require.Len(t, v.Slots, 1)
	assert.Equal(t, "late", v.Slots[0].ID)
	assert.Empty(t, v.Error)
}

func TestFlow_RequestTimeout(t *testing.T) {
	api := &mockAPI{
		FetchSlotsFunc: func(ctx context.Context, sess bookingapi.Session, stationID, date string) ([]model.TimeSlot, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	f := New(api, bookingapi.Session{Token: "tok"}, 20*time.Millisecond, nil)

	err := f.FetchSlots(context.Background(), "st-1", "2025-03-01")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateError, f.View().State)
}

func TestFlow_FetchInputValidation(t *testing.T) {
	api := &mockAPI{FetchSlotsFunc: slotsOf(s1)}
	f := New(api, bookingapi.Session{Token: "tok"}, 0, nil)

	assert.ErrorIs(t, f.FetchSlots(context.Background(), " ", "2025-03-01"), ErrInvalidStation)
	assert.ErrorIs(t, f.FetchSlots(context.Background(), "st-1", "someday"), ErrInvalidDate)
	assert.Equal(t, StateIdle, f.View().State)
	assert.Equal(t, int32(0), api.fetches.Load())

	require.NoError(t, f.FetchSlots(context.Background(), "st-1", "2025/03/01"))
	assert.Equal(t, "2025-03-01", f.View().Date)
}

func TestView_JSON(t *testing.T) {
	api := &mockAPI{FetchSlotsFunc: slotsOf(s1)}
	f := readyFlow(t, api)

	out, err := json.Marshal(f.View())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"state":"ready","stationId":"st-1","date":"2025-03-01",
		"slots":[{"id":"s1","startTime":"10:00","endTime":"11:00","availableSpots":1,"status":"Open","selectable":true}]
	}`, string(out))
}
