package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ev-booking-gateway/internal/model"
)

// Store defines the interface for all local database operations.
type Store interface {
	ReplaceSlots(ctx context.Context, stationID, date string, fetchedAt time.Time, slots []model.TimeSlot) error
	CachedSlots(ctx context.Context, stationID, date string) (*CachedSnapshot, error)
	RecordBooking(ctx context.Context, rec *model.BookingRecord) error
	ListBookings(ctx context.Context, userKey string) ([]model.BookingRecord, error)
	GetBooking(ctx context.Context, id int64) (*model.BookingRecord, error)
	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, userKey, endpoint string) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	SubscriptionsFor(ctx context.Context, userKey string) ([]model.PushSubscription, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ReplaceSlots swaps the persisted snapshot of a station/date for slots in one
// transaction. Rows are never merged with an older snapshot. Duplicate slot ids
// keep their first occurrence.
func (s *gormStore) ReplaceSlots(ctx context.Context, stationID, date string, fetchedAt time.Time, slots []model.TimeSlot) error {
	rows := make([]model.SlotSnapshot, 0, len(slots))
	seen := make(map[string]struct{}, len(slots))
	for i, slot := range slots {
		if _, dup := seen[slot.ID]; dup {
			continue
		}
		seen[slot.ID] = struct{}{}
		rows = append(rows, model.SlotSnapshot{
			StationID:      stationID,
			Date:           date,
			SlotID:         slot.ID,
			Position:       i,
			StartTime:      slot.StartTime,
			EndTime:        slot.EndTime,
			AvailableSpots: slot.AvailableSpots,
			Status:         string(slot.Status),
			FetchedAt:      fetchedAt,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("station_id = ? AND date = ?", stationID, date).Delete(&model.SlotSnapshot{}).Error; err != nil {
			return fmt.Errorf("failed to clear snapshot for station %s on %s: %w", stationID, date, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to store snapshot for station %s on %s: %w", stationID, date, err)
		}
		return nil
	})
}

// CachedSlots returns the last persisted snapshot in the backend's order.
func (s *gormStore) CachedSlots(ctx context.Context, stationID, date string) (*CachedSnapshot, error) {
	var rows []model.SlotSnapshot
	if err := s.db.WithContext(ctx).
		Where("station_id = ? AND date = ?", stationID, date).
		Order("position").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	snap := &CachedSnapshot{
		StationID: stationID,
		Date:      date,
		Slots:     make([]model.TimeSlot, 0, len(rows)),
		FetchedAt: rows[0].FetchedAt,
	}
	for _, r := range rows {
		snap.Slots = append(snap.Slots, r.TimeSlot())
	}
	return snap, nil
}

// RecordBooking appends rec to the ledger and applies the same one-spot
// decrement to the persisted snapshot row, matched by slot id.
func (s *gormStore) RecordBooking(ctx context.Context, rec *model.BookingRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to record booking for slot %s: %w", rec.TimeSlotID, err)
		}
		if err := tx.Model(&model.SlotSnapshot{}).
			Where("station_id = ? AND date = ? AND slot_id = ? AND available_spots > 0", rec.StationID, rec.Date, rec.TimeSlotID).
			UpdateColumn("available_spots", gorm.Expr("available_spots - ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to update cached slot %s: %w", rec.TimeSlotID, err)
		}
		return nil
	})
}

// ListBookings returns a user's bookings, newest first.
func (s *gormStore) ListBookings(ctx context.Context, userKey string) ([]model.BookingRecord, error) {
	var recs []model.BookingRecord
	if err := s.db.WithContext(ctx).
		Where("user_key = ?", userKey).
		Order("created_at DESC").
		Order("id DESC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *gormStore) GetBooking(ctx context.Context, id int64) (*model.BookingRecord, error) {
	var rec model.BookingRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// SaveSubscription creates a push subscription or refreshes the keys of one the
// same user already owns. An endpoint owned by another user is left alone and
// ErrSubscriptionTaken is returned.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.PushSubscription
		err := tx.First(&existing, "endpoint = ?", sub.Endpoint).Error
		switch {
		case err == nil && existing.UserKey != sub.UserKey:
			return ErrSubscriptionTaken
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: "push_subscriptions", Name: "user_key"}, Value: sub.UserKey},
			}},
		}).Create(sub)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSubscriptionTaken
		}
		return nil
	})
}

// DeleteSubscription removes the user's subscription for endpoint. An empty
// userKey matches any owner.
func (s *gormStore) DeleteSubscription(ctx context.Context, userKey, endpoint string) error {
	q := s.db.WithContext(ctx).Where("endpoint = ?", endpoint)
	if userKey != "" {
		q = q.Where("user_key = ?", userKey)
	}
	return q.Delete(&model.PushSubscription{}).Error
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *gormStore) SubscriptionsFor(ctx context.Context, userKey string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_key = ?", userKey).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
