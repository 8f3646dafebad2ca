package api

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ev-booking-gateway/internal/flow"
	"ev-booking-gateway/internal/model"
	"ev-booking-gateway/internal/store"
)

// Dispatcher queues a ledger entry for notification.
type Dispatcher interface {
	Dispatch(bookingID int64)
}

// NewBookingRecorder returns a flow.Registry listener that writes accepted
// bookings to the local ledger and queues their notifications. d may be nil.
func NewBookingRecorder(s store.Store, d Dispatcher, logger *zap.Logger) func(userKey string, b flow.Booked) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(userKey string, b flow.Booked) {
		rec := &model.BookingRecord{
			UserKey:           userKey,
			RemoteID:          b.Result.ID(),
			StationID:         b.StationID,
			Date:              b.Date,
			TimeSlotID:        b.Slot.ID,
			StartTime:         b.Slot.StartTime,
			EndTime:           b.Slot.EndTime,
			InitialPercentage: b.Battery,
			Payload:           string(b.Result.Raw),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.RecordBooking(ctx, rec); err != nil {
			logger.Error("failed to record booking", zap.String("slot", b.Slot.ID), zap.Error(err))
			return
		}
		if d != nil {
			d.Dispatch(rec.ID)
		}
	}
}
