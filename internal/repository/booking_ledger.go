package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"stagebook/internal/domain"
)

// BookingLedger is the durable record of bookings, their transition history,
// captured payments, refund obligations and cached idempotent results.
type BookingLedger struct {
	db *gorm.DB
}

func NewBookingLedger(db *gorm.DB) *BookingLedger {
	return &BookingLedger{db: db}
}

// Commit is everything one transition writes. It is applied atomically.
type Commit struct {
	Booking *domain.Booking
	// ExpectedVersion is the version the transition was computed from; 0 inserts.
	ExpectedVersion int64
	Transition      domain.BookingTransition
	Capture         *domain.PaymentCapture
	Refunds         []domain.RefundObligation
	Idempotency     *domain.IdempotencyRecord
}

type ListFilter struct {
	RequesterID string
	PerformerID string
	Status      *domain.BookingStatus
	Limit       int
	Offset      int
}

func (r *BookingLedger) Commit(ctx context.Context, c Commit) error {
	if c.Booking == nil {
		return fmt.Errorf("commit: nil booking")
	}
	m := toBookingModel(c.Booking)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.ExpectedVersion == 0 {
			if err := tx.Create(&m).Error; err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicate
				}
				return fmt.Errorf("insert booking: %w", err)
			}
		} else {
			res := tx.Model(&bookingModel{}).
				Where("id = ? AND version = ?", m.ID, c.ExpectedVersion).
				Updates(bookingUpdates(m))
			if res.Error != nil {
				return fmt.Errorf("update booking: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrVersionConflict
			}
		}

		tm := toTransitionModel(c.Transition)
		if err := tx.Create(&tm).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrVersionConflict
			}
			return fmt.Errorf("insert transition: %w", err)
		}

		if c.Capture != nil {
			cm := toCaptureModel(*c.Capture)
			if err := tx.Create(&cm).Error; err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicate
				}
				return fmt.Errorf("insert capture: %w", err)
			}
		}

		for _, ro := range c.Refunds {
			rm := toRefundModel(ro)
			if err := tx.Create(&rm).Error; err != nil {
				return fmt.Errorf("insert refund obligation: %w", err)
			}
		}

		if c.Idempotency != nil {
			im := toIdempotencyModel(*c.Idempotency)
			if err := tx.Create(&im).Error; err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicate
				}
				return fmt.Errorf("insert idempotency record: %w", err)
			}
		}
		return nil
	})
}

func (r *BookingLedger) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var m bookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainBooking(m), nil
}

func (r *BookingLedger) List(ctx context.Context, f ListFilter) ([]*domain.Booking, error) {
	q := r.db.WithContext(ctx).Model(&bookingModel{})
	if f.RequesterID != "" {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if f.PerformerID != "" {
		q = q.Where("performer_id = ?", f.PerformerID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []bookingModel
	if err := q.Order("created_at DESC").Order("id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Booking, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainBooking(m))
	}
	return out, nil
}

func (r *BookingLedger) History(ctx context.Context, bookingID string) ([]domain.BookingTransition, error) {
	var rows []transitionModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("sequence").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.BookingTransition, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainTransition(m))
	}
	return out, nil
}

func (r *BookingLedger) Captures(ctx context.Context, bookingID string) ([]domain.PaymentCapture, error) {
	var rows []captureModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("captured_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PaymentCapture, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainCapture(m))
	}
	return out, nil
}

func (r *BookingLedger) Refunds(ctx context.Context, bookingID string) ([]domain.RefundObligation, error) {
	var rows []refundModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RefundObligation, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainRefund(m))
	}
	return out, nil
}

// DueForCompletion returns ids of confirmed bookings whose event ended at or before now.
func (r *BookingLedger) DueForCompletion(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&bookingModel{}).
		Where("status = ? AND event_ends_at <= ?", domain.BookingConfirmed, now.UTC()).
		Order("event_ends_at").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *BookingLedger) FindIdempotency(ctx context.Context, scope string, t domain.Transition, token string) (*domain.IdempotencyRecord, error) {
	var m idempotencyModel
	err := r.db.WithContext(ctx).
		Where("scope = ? AND transition = ? AND token = ?", scope, string(t), token).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return toDomainIdempotency(m), nil
}
