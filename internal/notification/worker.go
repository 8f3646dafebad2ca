package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"ev-booking-gateway/internal/model"
	"ev-booking-gateway/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Message is the JSON payload pushed to the browser.
type Message struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	BookingID int64  `json:"bookingId"`
}

// WorkerPool sends "booking confirmed" notifications for ledger entries.
type WorkerPool struct {
	size    int
	jobs    chan int64
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size*4),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case bookingID := <-wp.jobs:
			wp.notifyBooking(ctx, bookingID)
		case <-ctx.Done():
			wp.logger.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a booking for notification. When the queue is full the
// notification is dropped.
func (wp *WorkerPool) Dispatch(bookingID int64) {
	select {
	case wp.jobs <- bookingID:
	default:
		wp.logger.Warn("notification queue full, dropping booking", zap.Int64("booking", bookingID))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

func messageFor(rec *model.BookingRecord) Message {
	body := fmt.Sprintf("Charging slot on %s at station %s is booked.", rec.Date, rec.StationID)
	if rec.StartTime != "" && rec.EndTime != "" {
		body = fmt.Sprintf("Charging slot %s-%s on %s at station %s is booked.", rec.StartTime, rec.EndTime, rec.Date, rec.StationID)
	}
	return Message{Title: "Booking confirmed", Body: body, BookingID: rec.ID}
}

// notifyBooking loads a ledger entry and pushes to every subscription of its owner.
func (wp *WorkerPool) notifyBooking(ctx context.Context, bookingID int64) {
	rec, err := wp.store.GetBooking(ctx, bookingID)
	if err != nil {
		wp.logger.Warn("cannot load booking for notification", zap.Int64("booking", bookingID), zap.Error(err))
		return
	}

	subs, err := wp.store.SubscriptionsFor(ctx, rec.UserKey)
	if err != nil {
		wp.logger.Warn("cannot load subscriptions", zap.Int64("booking", bookingID), zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(messageFor(rec))
	if err != nil {
		wp.logger.Error("cannot encode notification", zap.Error(err))
		return
	}

	wp.logger.Info("sending booking notifications", zap.Int64("booking", bookingID), zap.Int("subscriptions", len(subs)))
	for _, sub := range subs {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("push send failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Gone: the browser dropped the subscription.
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, "", sub.Endpoint); err != nil {
			wp.logger.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
