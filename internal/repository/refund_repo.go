package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stagebook/internal/domain"
)

// ClaimRefunds moves up to limit pending obligations, plus processing ones whose
// lease expired, to processing and returns them. A claim bumps Attempts.
func (r *BookingLedger) ClaimRefunds(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.RefundObligation, error) {
	if limit <= 0 {
		limit = 20
	}
	now = now.UTC()
	var claimed []domain.RefundObligation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []refundModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? OR (status = ? AND updated_at < ?)",
				string(domain.RefundPending), string(domain.RefundProcessing), now.Add(-lease)).
			Order("created_at").
			Limit(limit).
			Find(&rows).Error
		if err != nil {
			return err
		}

		for _, m := range rows {
			res := tx.Model(&refundModel{}).
				Where("id = ? AND status = ? AND attempts = ?", m.ID, m.Status, m.Attempts).
				Updates(map[string]any{
					"status":     string(domain.RefundProcessing),
					"attempts":   m.Attempts + 1,
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			m.Status = string(domain.RefundProcessing)
			m.Attempts++
			m.UpdatedAt = now
			claimed = append(claimed, toDomainRefund(m))
		}
		return nil
	})
	return claimed, err
}

func (r *BookingLedger) MarkRefundSettled(ctx context.Context, id, refundID string, now time.Time) error {
	now = now.UTC()
	res := r.db.WithContext(ctx).Model(&refundModel{}).
		Where("id = ? AND status = ?", id, string(domain.RefundProcessing)).
		Updates(map[string]any{
			"status":      string(domain.RefundRefunded),
			"refund_id":   refundID,
			"last_error":  nil,
			"refunded_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRefundRetry returns a claimed obligation to pending, or to failed once
// maxAttempts is reached.
func (r *BookingLedger) MarkRefundRetry(ctx context.Context, id, lastErr string, maxAttempts int, now time.Time) (domain.RefundStatus, error) {
	var m refundModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return "", notFound(err)
	}
	next := domain.RefundPending
	if maxAttempts > 0 && m.Attempts >= maxAttempts {
		next = domain.RefundFailed
	}
	res := r.db.WithContext(ctx).Model(&refundModel{}).
		Where("id = ? AND status = ?", id, string(domain.RefundProcessing)).
		Updates(map[string]any{
			"status":     string(next),
			"last_error": lastErr,
			"updated_at": now.UTC(),
		})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return next, nil
}
