package booking

import (
	"fmt"
	"strings"
	"time"

	"stagebook/internal/domain"
	"stagebook/internal/pkg/settlement"
)

// Policy holds the configurable business inputs of the state machine.
type Policy struct {
	Rates              settlement.RateTable
	Refunds            settlement.RefundPolicy
	FinalPaymentWindow time.Duration
	Location           *time.Location
}

func DefaultPolicy() Policy {
	return Policy{
		Rates:              settlement.RateTable{Default: settlement.DefaultRates},
		Refunds:            settlement.DefaultRefundPolicy,
		FinalPaymentWindow: 7 * 24 * time.Hour,
		Location:           time.UTC,
	}
}

var allowedFrom = map[domain.Transition][]domain.BookingStatus{
	domain.TransitionUpdate:     {domain.BookingPending},
	domain.TransitionAccept:     {domain.BookingPending},
	domain.TransitionReject:     {domain.BookingPending},
	domain.TransitionPayDeposit: {domain.BookingAccepted},
	domain.TransitionPayFinal:   {domain.BookingDepositPaid},
	domain.TransitionCancel:     {domain.BookingAccepted, domain.BookingDepositPaid, domain.BookingConfirmed},
	domain.TransitionComplete:   {domain.BookingConfirmed},
}

var targetStatus = map[domain.Transition]domain.BookingStatus{
	domain.TransitionAccept:     domain.BookingAccepted,
	domain.TransitionReject:     domain.BookingRejected,
	domain.TransitionPayDeposit: domain.BookingDepositPaid,
	domain.TransitionPayFinal:   domain.BookingConfirmed,
	domain.TransitionCancel:     domain.BookingCancelled,
	domain.TransitionComplete:   domain.BookingCompleted,
}

// Machine validates and applies booking transitions. It never mutates its
// input: Apply returns a new booking or an error.
type Machine struct {
	policy Policy
}

func NewMachine(p Policy) *Machine {
	if p.Location == nil {
		p.Location = time.UTC
	}
	return &Machine{policy: p}
}

func (m *Machine) Policy() Policy { return m.policy }

// Authorize checks that actor may request t on b.
func (m *Machine) Authorize(b *domain.Booking, actor domain.Actor, t domain.Transition) error {
	isRequester := actor.Role.IsRequester() && actor.ID == b.RequesterID
	isPerformer := actor.Role.IsPerformer() && actor.ID == b.PerformerID

	var ok bool
	switch t {
	case domain.TransitionAccept, domain.TransitionReject:
		ok = isPerformer
	case domain.TransitionPayDeposit, domain.TransitionPayFinal, domain.TransitionUpdate:
		ok = isRequester
	case domain.TransitionCancel:
		ok = isRequester || isPerformer
	case domain.TransitionComplete:
		ok = actor.IsSystem()
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTransition, t)
	}
	if !ok {
		return fmt.Errorf("%w: %s may not %s this booking", ErrForbidden, actor.Role, t)
	}
	return nil
}

// CanView reports whether actor may read b and its history.
func CanView(b *domain.Booking, actor domain.Actor) bool {
	return b.IsParty(actor.ID) || actor.Role == domain.RoleAdmin
}

func (m *Machine) checkState(b *domain.Booking, t domain.Transition, now time.Time) error {
	from, ok := allowedFrom[t]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, t)
	}
	allowed := false
	for _, s := range from {
		if b.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: cannot %s a %s booking", ErrInvalidTransition, t, b.Status)
	}

	switch t {
	case domain.TransitionPayFinal:
		opens := b.EventStartsAt.Add(-m.policy.FinalPaymentWindow)
		if now.Before(opens) || now.After(b.EventStartsAt) {
			return fmt.Errorf("%w: final payment is accepted from %s until %s",
				ErrInvalidTransition, opens.Format(time.RFC3339), b.EventStartsAt.Format(time.RFC3339))
		}
	case domain.TransitionComplete:
		if now.Before(b.EventEndsAt) {
			return fmt.Errorf("%w: event ends at %s", ErrInvalidTransition, b.EventEndsAt.Format(time.RFC3339))
		}
	}
	return nil
}

// Apply authorizes, checks preconditions and returns the booking after in.
func (m *Machine) Apply(b *domain.Booking, actor domain.Actor, in Intent, now time.Time) (*domain.Booking, error) {
	if err := m.Authorize(b, actor, in.Transition); err != nil {
		return nil, err
	}
	if err := m.checkState(b, in.Transition, now); err != nil {
		return nil, err
	}

	now = now.UTC()
	next := cloneBooking(b)

	switch in.Transition {
	case domain.TransitionUpdate:
		if in.Update == nil || in.Update.IsEmpty() {
			return nil, FieldErrors{"body": "empty update"}
		}
		if err := m.applyUpdate(next, *in.Update, now); err != nil {
			return nil, err
		}

	case domain.TransitionAccept:
		s, err := m.policy.Rates.Compute(b.EventType, b.OfferedPrice)
		if err != nil {
			return nil, err
		}
		next.PlatformCommission = &s.PlatformCommission
		next.PerformerFee = &s.PerformerFee
		next.DepositAmount = &s.DepositAmount
		next.FinalAmount = &s.FinalAmount
		next.AcceptedAt = &now

	case domain.TransitionReject:
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			return nil, FieldErrors{"rejectionReason": "required"}
		}
		next.RejectionReason = &reason
		next.RejectedAt = &now

	case domain.TransitionPayDeposit:
		if strings.TrimSpace(in.PaymentMethodID) == "" {
			return nil, FieldErrors{"paymentMethodId": "required"}
		}
		next.DepositPaidAt = &now

	case domain.TransitionPayFinal:
		if strings.TrimSpace(in.PaymentMethodID) == "" {
			return nil, FieldErrors{"paymentMethodId": "required"}
		}
		next.ConfirmedAt = &now

	case domain.TransitionCancel:
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			return nil, FieldErrors{"cancellationReason": "required"}
		}
		by := actor.ID
		next.CancellationReason = &reason
		next.CancelledBy = &by
		next.CancelledAt = &now

	case domain.TransitionComplete:
		next.CompletedAt = &now
	}

	if to, ok := targetStatus[in.Transition]; ok {
		next.Status = to
	}
	next.UpdatedAt = now
	next.Version = b.Version + 1
	return next, nil
}

// NewBooking runs the create transition.
func (m *Machine) NewBooking(id string, actor domain.Actor, req CreateBookingRequest, now time.Time) (*domain.Booking, error) {
	if !actor.Role.IsRequester() {
		return nil, fmt.Errorf("%w: only venues may create bookings", ErrForbidden)
	}
	if req.PerformerID == actor.ID {
		return nil, FieldErrors{"performerId": "self"}
	}
	if req.OfferedPrice <= 0 {
		return nil, fmt.Errorf("%w: offered price must be positive", settlement.ErrInvalidAmount)
	}
	et, err := domain.ParseEventType(req.EventType)
	if err != nil {
		return nil, FieldErrors{"eventType": "eventtype"}
	}
	if strings.TrimSpace(req.EventTitle) == "" {
		return nil, FieldErrors{"eventTitle": "required"}
	}

	now = now.UTC()
	b := &domain.Booking{
		ID:               id,
		RequesterID:      actor.ID,
		PerformerID:      req.PerformerID,
		EventType:        et,
		EventTitle:       strings.TrimSpace(req.EventTitle),
		EventDescription: req.EventDescription,
		EventDate:        req.EventDate,
		StartTime:        req.StartTime,
		DurationHours:    req.DurationHours,
		VenueAddress:     req.VenueAddress,
		VenueCity:        req.VenueCity,
		ExpectedAudience: req.ExpectedAudience,
		OfferedPrice:     req.OfferedPrice,
		Status:           domain.BookingPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}
	if err := m.schedule(b, now); err != nil {
		return nil, err
	}
	return b, nil
}

func (m *Machine) applyUpdate(b *domain.Booking, u UpdateBookingRequest, now time.Time) error {
	if u.EventTitle != nil {
		title := strings.TrimSpace(*u.EventTitle)
		if title == "" {
			return FieldErrors{"eventTitle": "required"}
		}
		b.EventTitle = title
	}
	if u.EventDescription != nil {
		b.EventDescription = *u.EventDescription
	}
	if u.EventDate != nil {
		b.EventDate = *u.EventDate
	}
	if u.StartTime != nil {
		b.StartTime = *u.StartTime
	}
	if u.DurationHours != nil {
		b.DurationHours = *u.DurationHours
	}
	if u.VenueAddress != nil {
		b.VenueAddress = *u.VenueAddress
	}
	if u.VenueCity != nil {
		b.VenueCity = *u.VenueCity
	}
	if u.ExpectedAudience != nil {
		v := *u.ExpectedAudience
		b.ExpectedAudience = &v
	}
	return m.schedule(b, now)
}

func (m *Machine) schedule(b *domain.Booking, now time.Time) error {
	if b.DurationHours <= 0 || b.DurationHours > 24 {
		return FieldErrors{"durationHours": "range"}
	}
	start, end, err := domain.ResolveSchedule(b.EventDate, b.StartTime, b.DurationHours, m.policy.Location)
	if err != nil {
		return FieldErrors{"eventDate": "eventdate"}
	}
	if !start.After(now) {
		return FieldErrors{"eventDate": "future"}
	}
	b.EventStartsAt = start
	b.EventEndsAt = end
	return nil
}

// ChargeFor returns the amount and capture kind a payment transition collects.
func ChargeFor(b *domain.Booking, t domain.Transition) (int64, domain.CaptureKind, bool) {
	switch t {
	case domain.TransitionPayDeposit:
		if b.DepositAmount != nil {
			return *b.DepositAmount, domain.CaptureDeposit, true
		}
	case domain.TransitionPayFinal:
		if b.FinalAmount != nil {
			return *b.FinalAmount, domain.CaptureFinal, true
		}
	}
	return 0, "", false
}

// RefundObligations computes what a cancel at now owes back for each capture.
func (m *Machine) RefundObligations(b *domain.Booking, captures []domain.PaymentCapture, cancelledBy string, now time.Time, newID func() string) []domain.RefundObligation {
	if len(captures) == 0 {
		return nil
	}
	full := m.policy.Refunds.IsFull(b.EventStartsAt, now, cancelledBy == b.PerformerID)
	now = now.UTC()

	out := make([]domain.RefundObligation, 0, len(captures))
	for _, c := range captures {
		amount := m.policy.Refunds.Amount(c.Amount, full)
		if amount <= 0 {
			continue
		}
		out = append(out, domain.RefundObligation{
			ID:             newID(),
			BookingID:      b.ID,
			CaptureID:      c.ID,
			TransactionID:  c.TransactionID,
			CapturedAmount: c.Amount,
			Amount:         amount,
			FullRefund:     full,
			Status:         domain.RefundPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return out
}

func cloneBooking(b *domain.Booking) *domain.Booking {
	c := *b
	c.ExpectedAudience = cloneInt(b.ExpectedAudience)
	c.PlatformCommission = cloneInt64(b.PlatformCommission)
	c.PerformerFee = cloneInt64(b.PerformerFee)
	c.DepositAmount = cloneInt64(b.DepositAmount)
	c.FinalAmount = cloneInt64(b.FinalAmount)
	c.RejectionReason = cloneStr(b.RejectionReason)
	c.CancellationReason = cloneStr(b.CancellationReason)
	c.CancelledBy = cloneStr(b.CancelledBy)
	c.AcceptedAt = cloneTime(b.AcceptedAt)
	c.RejectedAt = cloneTime(b.RejectedAt)
	c.DepositPaidAt = cloneTime(b.DepositPaidAt)
	c.ConfirmedAt = cloneTime(b.ConfirmedAt)
	c.CompletedAt = cloneTime(b.CompletedAt)
	c.CancelledAt = cloneTime(b.CancelledAt)
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
