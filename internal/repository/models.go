package repository

import (
	"time"

	"stagebook/internal/domain"
)

type bookingModel struct {
	ID          string `gorm:"column:id;primaryKey;type:varchar(64)"`
	RequesterID string `gorm:"column:requester_id;type:varchar(64);not null;index"`
	PerformerID string `gorm:"column:performer_id;type:varchar(64);not null;index"`

	EventType        domain.EventType `gorm:"column:event_type;type:varchar(32);not null"`
	EventTitle       string           `gorm:"column:event_title;type:varchar(200);not null"`
	EventDescription *string          `gorm:"column:event_description;type:text"`
	EventDate        string           `gorm:"column:event_date;type:varchar(10);not null"`
	StartTime        string           `gorm:"column:start_time;type:varchar(5);not null"`
	DurationHours    float64          `gorm:"column:duration_hours;not null"`
	VenueAddress     *string          `gorm:"column:venue_address;type:text"`
	VenueCity        *string          `gorm:"column:venue_city;type:varchar(120)"`
	ExpectedAudience *int             `gorm:"column:expected_audience"`
	EventStartsAt    time.Time        `gorm:"column:event_starts_at;not null"`
	EventEndsAt      time.Time        `gorm:"column:event_ends_at;not null;index:idx_bookings_status_ends,priority:2"`

	OfferedPrice       int64  `gorm:"column:offered_price;not null"`
	PlatformCommission *int64 `gorm:"column:platform_commission"`
	PerformerFee       *int64 `gorm:"column:performer_fee"`
	DepositAmount      *int64 `gorm:"column:deposit_amount"`
	FinalAmount        *int64 `gorm:"column:final_amount"`

	Status             domain.BookingStatus `gorm:"column:status;type:varchar(20);not null;index:idx_bookings_status_ends,priority:1"`
	RejectionReason    *string              `gorm:"column:rejection_reason;type:text"`
	CancellationReason *string              `gorm:"column:cancellation_reason;type:text"`
	CancelledBy        *string              `gorm:"column:cancelled_by;type:varchar(64)"`

	CreatedAt     time.Time  `gorm:"column:created_at;not null;autoCreateTime:false"`
	AcceptedAt    *time.Time `gorm:"column:accepted_at"`
	RejectedAt    *time.Time `gorm:"column:rejected_at"`
	DepositPaidAt *time.Time `gorm:"column:deposit_paid_at"`
	ConfirmedAt   *time.Time `gorm:"column:confirmed_at"`
	CompletedAt   *time.Time `gorm:"column:completed_at"`
	CancelledAt   *time.Time `gorm:"column:cancelled_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false"`

	Version int64 `gorm:"column:version;not null"`
}

func (bookingModel) TableName() string { return "bookings" }

type transitionModel struct {
	ID            string               `gorm:"column:id;primaryKey;type:varchar(64)"`
	BookingID     string               `gorm:"column:booking_id;type:varchar(64);not null;uniqueIndex:ux_transitions_booking_seq,priority:1"`
	Sequence      int64                `gorm:"column:sequence;not null;uniqueIndex:ux_transitions_booking_seq,priority:2"`
	Transition    string               `gorm:"column:transition;type:varchar(20);not null"`
	FromStatus    *string              `gorm:"column:from_status;type:varchar(20)"`
	ToStatus      domain.BookingStatus `gorm:"column:to_status;type:varchar(20);not null"`
	ActorID       string               `gorm:"column:actor_id;type:varchar(64);not null"`
	ActorRole     string               `gorm:"column:actor_role;type:varchar(20);not null"`
	RequestToken  *string              `gorm:"column:request_token;type:varchar(128)"`
	Reason        *string              `gorm:"column:reason;type:text"`
	TransactionID *string              `gorm:"column:transaction_id;type:varchar(128)"`
	OccurredAt    time.Time            `gorm:"column:occurred_at;not null"`
}

func (transitionModel) TableName() string { return "booking_transitions" }

type captureModel struct {
	ID             string    `gorm:"column:id;primaryKey;type:varchar(64)"`
	BookingID      string    `gorm:"column:booking_id;type:varchar(64);not null;uniqueIndex:ux_captures_booking_kind,priority:1"`
	Kind           string    `gorm:"column:kind;type:varchar(16);not null;uniqueIndex:ux_captures_booking_kind,priority:2"`
	Amount         int64     `gorm:"column:amount;not null"`
	TransactionID  string    `gorm:"column:transaction_id;type:varchar(128);not null"`
	IdempotencyKey string    `gorm:"column:idempotency_key;type:varchar(255);not null;uniqueIndex"`
	CapturedAt     time.Time `gorm:"column:captured_at;not null"`
}

func (captureModel) TableName() string { return "payment_captures" }

type refundModel struct {
	ID             string     `gorm:"column:id;primaryKey;type:varchar(64)"`
	BookingID      string     `gorm:"column:booking_id;type:varchar(64);not null;index"`
	CaptureID      string     `gorm:"column:capture_id;type:varchar(64);not null;uniqueIndex"`
	TransactionID  string     `gorm:"column:transaction_id;type:varchar(128);not null"`
	CapturedAmount int64      `gorm:"column:captured_amount;not null"`
	Amount         int64      `gorm:"column:amount;not null"`
	FullRefund     bool       `gorm:"column:full_refund;not null"`
	Status         string     `gorm:"column:status;type:varchar(20);not null;index"`
	Attempts       int        `gorm:"column:attempts;not null;default:0"`
	LastError      *string    `gorm:"column:last_error;type:text"`
	RefundID       *string    `gorm:"column:refund_id;type:varchar(128)"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false"`
	RefundedAt     *time.Time `gorm:"column:refunded_at"`
}

func (refundModel) TableName() string { return "refund_obligations" }

type idempotencyModel struct {
	Scope       string    `gorm:"column:scope;primaryKey;type:varchar(64)"`
	Transition  string    `gorm:"column:transition;primaryKey;type:varchar(20)"`
	Token       string    `gorm:"column:token;primaryKey;type:varchar(128)"`
	Fingerprint string    `gorm:"column:fingerprint;type:varchar(64);not null"`
	BookingID   string    `gorm:"column:booking_id;type:varchar(64);not null;index"`
	Result      []byte    `gorm:"column:result;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
}

func (idempotencyModel) TableName() string { return "idempotency_records" }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toDomainBooking(m bookingModel) *domain.Booking {
	return &domain.Booking{
		ID:                 m.ID,
		RequesterID:        m.RequesterID,
		PerformerID:        m.PerformerID,
		EventType:          m.EventType,
		EventTitle:         m.EventTitle,
		EventDescription:   strVal(m.EventDescription),
		EventDate:          m.EventDate,
		StartTime:          m.StartTime,
		DurationHours:      m.DurationHours,
		VenueAddress:       strVal(m.VenueAddress),
		VenueCity:          strVal(m.VenueCity),
		ExpectedAudience:   m.ExpectedAudience,
		EventStartsAt:      m.EventStartsAt.UTC(),
		EventEndsAt:        m.EventEndsAt.UTC(),
		OfferedPrice:       m.OfferedPrice,
		PlatformCommission: m.PlatformCommission,
		PerformerFee:       m.PerformerFee,
		DepositAmount:      m.DepositAmount,
		FinalAmount:        m.FinalAmount,
		Status:             m.Status,
		RejectionReason:    m.RejectionReason,
		CancellationReason: m.CancellationReason,
		CancelledBy:        m.CancelledBy,
		CreatedAt:          m.CreatedAt.UTC(),
		AcceptedAt:         utcPtr(m.AcceptedAt),
		RejectedAt:         utcPtr(m.RejectedAt),
		DepositPaidAt:      utcPtr(m.DepositPaidAt),
		ConfirmedAt:        utcPtr(m.ConfirmedAt),
		CompletedAt:        utcPtr(m.CompletedAt),
		CancelledAt:        utcPtr(m.CancelledAt),
		UpdatedAt:          m.UpdatedAt.UTC(),
		Version:            m.Version,
	}
}

func toBookingModel(b *domain.Booking) bookingModel {
	return bookingModel{
		ID:                 b.ID,
		RequesterID:        b.RequesterID,
		PerformerID:        b.PerformerID,
		EventType:          b.EventType,
		EventTitle:         b.EventTitle,
		EventDescription:   strPtr(b.EventDescription),
		EventDate:          b.EventDate,
		StartTime:          b.StartTime,
		DurationHours:      b.DurationHours,
		VenueAddress:       strPtr(b.VenueAddress),
		VenueCity:          strPtr(b.VenueCity),
		ExpectedAudience:   b.ExpectedAudience,
		EventStartsAt:      b.EventStartsAt.UTC(),
		EventEndsAt:        b.EventEndsAt.UTC(),
		OfferedPrice:       b.OfferedPrice,
		PlatformCommission: b.PlatformCommission,
		PerformerFee:       b.PerformerFee,
		DepositAmount:      b.DepositAmount,
		FinalAmount:        b.FinalAmount,
		Status:             b.Status,
		RejectionReason:    b.RejectionReason,
		CancellationReason: b.CancellationReason,
		CancelledBy:        b.CancelledBy,
		CreatedAt:          b.CreatedAt.UTC(),
		AcceptedAt:         utcPtr(b.AcceptedAt),
		RejectedAt:         utcPtr(b.RejectedAt),
		DepositPaidAt:      utcPtr(b.DepositPaidAt),
		ConfirmedAt:        utcPtr(b.ConfirmedAt),
		CompletedAt:        utcPtr(b.CompletedAt),
		CancelledAt:        utcPtr(b.CancelledAt),
		UpdatedAt:          b.UpdatedAt.UTC(),
		Version:            b.Version,
	}
}

// bookingUpdates lists every mutable column. Map updates write zero values and nils.
func bookingUpdates(m bookingModel) map[string]any {
	return map[string]any{
		"event_title":         m.EventTitle,
		"event_description":   m.EventDescription,
		"event_date":          m.EventDate,
		"start_time":          m.StartTime,
		"duration_hours":      m.DurationHours,
		"venue_address":       m.VenueAddress,
		"venue_city":          m.VenueCity,
		"expected_audience":   m.ExpectedAudience,
		"event_starts_at":     m.EventStartsAt,
		"event_ends_at":       m.EventEndsAt,
		"platform_commission": m.PlatformCommission,
		"performer_fee":       m.PerformerFee,
		"deposit_amount":      m.DepositAmount,
		"final_amount":        m.FinalAmount,
		"status":              m.Status,
		"rejection_reason":    m.RejectionReason,
		"cancellation_reason": m.CancellationReason,
		"cancelled_by":        m.CancelledBy,
		"accepted_at":         m.AcceptedAt,
		"rejected_at":         m.RejectedAt,
		"deposit_paid_at":     m.DepositPaidAt,
		"confirmed_at":        m.ConfirmedAt,
		"completed_at":        m.CompletedAt,
		"cancelled_at":        m.CancelledAt,
		"updated_at":          m.UpdatedAt,
		"version":             m.Version,
	}
}

func toTransitionModel(t domain.BookingTransition) transitionModel {
	var from *string
	if t.FromStatus != "" {
		s := string(t.FromStatus)
		from = &s
	}
	return transitionModel{
		ID:            t.ID,
		BookingID:     t.BookingID,
		Sequence:      t.Sequence,
		Transition:    string(t.Transition),
		FromStatus:    from,
		ToStatus:      t.ToStatus,
		ActorID:       t.ActorID,
		ActorRole:     string(t.ActorRole),
		RequestToken:  strPtr(t.RequestToken),
		Reason:        t.Reason,
		TransactionID: t.TransactionID,
		OccurredAt:    t.OccurredAt.UTC(),
	}
}

func toDomainTransition(m transitionModel) domain.BookingTransition {
	return domain.BookingTransition{
		ID:            m.ID,
		BookingID:     m.BookingID,
		Sequence:      m.Sequence,
		Transition:    domain.Transition(m.Transition),
		FromStatus:    domain.BookingStatus(strVal(m.FromStatus)),
		ToStatus:      m.ToStatus,
		ActorID:       m.ActorID,
		ActorRole:     domain.Role(m.ActorRole),
		RequestToken:  strVal(m.RequestToken),
		Reason:        m.Reason,
		TransactionID: m.TransactionID,
		OccurredAt:    m.OccurredAt.UTC(),
	}
}

func toCaptureModel(c domain.PaymentCapture) captureModel {
	return captureModel{
		ID:             c.ID,
		BookingID:      c.BookingID,
		Kind:           string(c.Kind),
		Amount:         c.Amount,
		TransactionID:  c.TransactionID,
		IdempotencyKey: c.IdempotencyKey,
		CapturedAt:     c.CapturedAt.UTC(),
	}
}

func toDomainCapture(m captureModel) domain.PaymentCapture {
	return domain.PaymentCapture{
		ID:             m.ID,
		BookingID:      m.BookingID,
		Kind:           domain.CaptureKind(m.Kind),
		Amount:         m.Amount,
		TransactionID:  m.TransactionID,
		IdempotencyKey: m.IdempotencyKey,
		CapturedAt:     m.CapturedAt.UTC(),
	}
}

func toRefundModel(r domain.RefundObligation) refundModel {
	return refundModel{
		ID:             r.ID,
		BookingID:      r.BookingID,
		CaptureID:      r.CaptureID,
		TransactionID:  r.TransactionID,
		CapturedAmount: r.CapturedAmount,
		Amount:         r.Amount,
		FullRefund:     r.FullRefund,
		Status:         string(r.Status),
		Attempts:       r.Attempts,
		LastError:      strPtr(r.LastError),
		RefundID:       strPtr(r.RefundID),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		RefundedAt:     utcPtr(r.RefundedAt),
	}
}

func toDomainRefund(m refundModel) domain.RefundObligation {
	return domain.RefundObligation{
		ID:             m.ID,
		BookingID:      m.BookingID,
		CaptureID:      m.CaptureID,
		TransactionID:  m.TransactionID,
		CapturedAmount: m.CapturedAmount,
		Amount:         m.Amount,
		FullRefund:     m.FullRefund,
		Status:         domain.RefundStatus(m.Status),
		Attempts:       m.Attempts,
		LastError:      strVal(m.LastError),
		RefundID:       strVal(m.RefundID),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
		RefundedAt:     utcPtr(m.RefundedAt),
	}
}

func toIdempotencyModel(r domain.IdempotencyRecord) idempotencyModel {
	return idempotencyModel{
		Scope:       r.Scope,
		Transition:  string(r.Transition),
		Token:       r.Token,
		Fingerprint: r.Fingerprint,
		BookingID:   r.BookingID,
		Result:      r.Result,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func toDomainIdempotency(m idempotencyModel) *domain.IdempotencyRecord {
	return &domain.IdempotencyRecord{
		Scope:       m.Scope,
		Transition:  domain.Transition(m.Transition),
		Token:       m.Token,
		Fingerprint: m.Fingerprint,
		BookingID:   m.BookingID,
		Result:      m.Result,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}
