package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stagebook/internal/domain"
	"stagebook/internal/modules/payment"
	"stagebook/internal/notification"
	"stagebook/internal/pkg/validator"
	"stagebook/internal/repository"
)

var tracer = otel.Tracer("stagebook/booking")

type Service struct {
	ledger  Ledger
	machine *Machine
	guard   *Guard
	gateway payment.Gateway
	events  EventPublisher
	loggerf func(format string, args ...interface{})

	now   func() time.Time
	newID func() string
}

func NewService(ledger Ledger, machine *Machine, guard *Guard, gateway payment.Gateway, events EventPublisher, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	if events == nil {
		events = notification.Nop{}
	}
	return &Service{
		ledger:  ledger,
		machine: machine,
		guard:   guard,
		gateway: gateway,
		events:  events,
		loggerf: loggerf,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Create runs the create transition. token deduplicates retried creates per requester.
func (s *Service) Create(ctx context.Context, actor domain.Actor, req CreateBookingRequest, token string) (Result, error) {
	ctx, span := s.startSpan(ctx, domain.TransitionCreate, "", actor)
	defer span.End()

	res, err := s.create(ctx, actor, req, token)
	return res, s.endSpan(span, res, err)
}

func (s *Service) create(ctx context.Context, actor domain.Actor, req CreateBookingRequest, token string) (Result, error) {
	if errs := validator.Validate(req); errs != nil {
		return Result{}, FieldErrors(errs)
	}

	key := NewKey(actor.ID, domain.TransitionCreate, token)
	fp, err := Fingerprint(actor, domain.TransitionCreate, req)
	if err != nil {
		return Result{}, err
	}
	if cached, ok, err := s.guard.Lookup(ctx, key, fp); err != nil || ok {
		return Result{Booking: cached, Replayed: ok}, err
	}

	unlock, err := s.guard.Lock(ctx, "requester:"+actor.ID)
	if err != nil {
		return Result{}, err
	}
	release := sync.OnceFunc(unlock)
	defer release()

	if cached, ok, err := s.guard.Lookup(ctx, key, fp); err != nil || ok {
		return Result{Booking: cached, Replayed: ok}, err
	}

	now := s.now()
	b, err := s.machine.NewBooking(s.newID(), actor, req, now)
	if err != nil {
		return Result{}, err
	}

	rec, err := s.guard.Record(key, fp, b, now)
	if err != nil {
		return Result{}, err
	}
	commit := repository.Commit{
		Booking:     b,
		Transition:  s.transitionEntry(nil, b, domain.TransitionCreate, actor, key, nil, now),
		Idempotency: rec,
	}
	if err := s.ledger.Commit(ctx, commit); err != nil {
		return s.commitFailed(ctx, key, fp, err)
	}

	release()

	s.loggerf("level=info msg=booking_created booking_id=%s requester_id=%s performer_id=%s offered_price=%d", b.ID, b.RequesterID, b.PerformerID, b.OfferedPrice)
	s.events.Publish(ctx, notification.NewBookingEvent(b, domain.TransitionCreate, actor, now))
	return Result{Booking: b}, nil
}

func (s *Service) Update(ctx context.Context, actor domain.Actor, bookingID string, req UpdateBookingRequest, token string) (Result, error) {
	if errs := validator.Validate(req); errs != nil {
		return Result{}, FieldErrors(errs)
	}
	return s.Transition(ctx, actor, bookingID, Intent{Transition: domain.TransitionUpdate, Update: &req}, token)
}

func (s *Service) Accept(ctx context.Context, actor domain.Actor, bookingID, token string) (Result, error) {
	return s.Transition(ctx, actor, bookingID, Intent{Transition: domain.TransitionAccept}, token)
}

func (s *Service) Reject(ctx context.Context, actor domain.Actor, bookingID, reason, token string) (Result, error) {
	return s.Transition(ctx, actor, bookingID, Intent{Transition: domain.TransitionReject, Reason: reason}, token)
}

func (s *Service) PayDeposit(ctx context.Context, actor domain.Actor, bookingID, paymentMethodID, token string) (Result, error) {
	return s.Transition(ctx, actor, bookingID, Intent{Transition: domain.TransitionPayDeposit, PaymentMethodID: paymentMethodID}, token)
}

func (s *Service) PayFinal(ctx context.Context, actor domain.Actor, bookingID, paymentMethodID, token string) (Result, error) {
	return s.Transition(ctx, actor, bookingID, Intent{Transition: domain.TransitionPayFinal, PaymentMethodID: paymentMethodID}, token)
}

func (s *Service) Cancel(ctx context.Context, actor domain.Actor, bookingID, reason, token string) (Result, error) {
	return s.Transition(ctx, actor, bookingID, Intent{Transition: domain.TransitionCancel, Reason: reason}, token)
}

// Transition runs one state change under the guard: deduplicate, serialize per
// booking, validate, capture payment if needed, then commit atomically.
func (s *Service) Transition(ctx context.Context, actor domain.Actor, bookingID string, in Intent, token string) (Result, error) {
	ctx, span := s.startSpan(ctx, in.Transition, bookingID, actor)
	defer span.End()

	res, err := s.transition(ctx, actor, bookingID, in, token)
	return res, s.endSpan(span, res, err)
}

func (s *Service) transition(ctx context.Context, actor domain.Actor, bookingID string, in Intent, token string) (Result, error) {
	if in.Transition == domain.TransitionCreate {
		return Result{}, fmt.Errorf("%w: create is not a transition of an existing booking", ErrInvalidTransition)
	}

	key := NewKey(bookingID, in.Transition, token)
	fp, err := Fingerprint(actor, in.Transition, in)
	if err != nil {
		return Result{}, err
	}
	if cached, ok, err := s.guard.Lookup(ctx, key, fp); err != nil || ok {
		return Result{Booking: cached, Replayed: ok}, err
	}

	unlock, err := s.guard.Lock(ctx, bookingID)
	if err != nil {
		return Result{}, err
	}
	release := sync.OnceFunc(unlock)
	defer release()

	// the previous holder may have committed this very intent
	if cached, ok, err := s.guard.Lookup(ctx, key, fp); err != nil || ok {
		return Result{Booking: cached, Replayed: ok}, err
	}

	current, err := s.ledger.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}
	now := s.now()
	next, err := s.machine.Apply(current, actor, in, now)
	if err != nil {
		return Result{}, err
	}

	commit := repository.Commit{
		Booking:         next,
		ExpectedVersion: current.Version,
	}

	var txnID *string
	if amount, kind, ok := ChargeFor(current, in.Transition); ok {
		capture, err := s.charge(ctx, current, kind, amount, in.PaymentMethodID, key, now)
		if err != nil {
			return Result{}, err
		}
		commit.Capture = capture
		txnID = &capture.TransactionID
	}

	if in.Transition == domain.TransitionCancel {
		captures, err := s.ledger.Captures(ctx, bookingID)
		if err != nil {
			return Result{}, err
		}
		commit.Refunds = s.machine.RefundObligations(current, captures, actor.ID, now, s.newID)
	}

	commit.Transition = s.transitionEntry(current, next, in.Transition, actor, key, strPtrOrNil(strings.TrimSpace(in.Reason)), now)
	commit.Transition.TransactionID = txnID

	rec, err := s.guard.Record(key, fp, next, now)
	if err != nil {
		return Result{}, err
	}
	commit.Idempotency = rec

	if err := s.ledger.Commit(ctx, commit); err != nil {
		if commit.Capture != nil {
			// the charge is keyed by the intent, so a retry with the same token reuses it
			s.loggerf("level=error msg=commit_after_capture_failed booking_id=%s transition=%s transaction_id=%s err=%v",
				bookingID, in.Transition, commit.Capture.TransactionID, err)
		}
		return s.commitFailed(ctx, key, fp, err)
	}

	// observers are notified outside the booking lock
	release()

	s.loggerf("level=info msg=booking_transition booking_id=%s transition=%s from=%s to=%s actor_id=%s version=%d",
		bookingID, in.Transition, current.Status, next.Status, actor.ID, next.Version)
	for _, ro := range commit.Refunds {
		s.loggerf("level=info msg=refund_obligation_recorded booking_id=%s refund_id=%s amount=%d full=%t", bookingID, ro.ID, ro.Amount, ro.FullRefund)
	}
	s.events.Publish(ctx, notification.NewBookingEvent(next, in.Transition, actor, now))
	return Result{Booking: next}, nil
}

func (s *Service) charge(ctx context.Context, b *domain.Booking, kind domain.CaptureKind, amount int64, paymentMethodID string, key Key, now time.Time) (*domain.PaymentCapture, error) {
	if s.gateway == nil {
		return nil, payment.ErrGatewayUnavailable
	}
	res, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		BookingID:       b.ID,
		Amount:          amount,
		PaymentMethodID: paymentMethodID,
		IdempotencyKey:  key.GatewayKey(),
	})
	if err != nil {
		s.loggerf("level=warn msg=payment_capture_failed booking_id=%s kind=%s amount=%d err=%v", b.ID, kind, amount, err)
		return nil, err
	}
	return &domain.PaymentCapture{
		ID:             s.newID(),
		BookingID:      b.ID,
		Kind:           kind,
		Amount:         amount,
		TransactionID:  res.TransactionID,
		IdempotencyKey: key.GatewayKey(),
		CapturedAt:     now.UTC(),
	}, nil
}

// commitFailed maps ledger conflicts. A duplicate idempotency record means a
// concurrent writer finished the same intent first, so its result is replayed.
func (s *Service) commitFailed(ctx context.Context, key Key, fp string, err error) (Result, error) {
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		return Result{}, ErrConcurrentModification
	case errors.Is(err, repository.ErrDuplicate):
		if cached, ok, lerr := s.guard.Lookup(ctx, key, fp); lerr == nil && ok {
			return Result{Booking: cached, Replayed: true}, nil
		} else if lerr != nil {
			return Result{}, lerr
		}
		return Result{}, ErrConcurrentModification
	default:
		return Result{}, err
	}
}

func (s *Service) transitionEntry(from, to *domain.Booking, t domain.Transition, actor domain.Actor, key Key, reason *string, now time.Time) domain.BookingTransition {
	var fromStatus domain.BookingStatus
	if from != nil {
		fromStatus = from.Status
	}
	return domain.BookingTransition{
		ID:           s.newID(),
		BookingID:    to.ID,
		Sequence:     to.Version,
		Transition:   t,
		FromStatus:   fromStatus,
		ToStatus:     to.Status,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		RequestToken: key.Token,
		Reason:       reason,
		OccurredAt:   now.UTC(),
	}
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	b, err := s.ledger.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !CanView(b, actor) {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, actor domain.Actor, q ListQuery) ([]*domain.Booking, error) {
	if errs := validator.Validate(q); errs != nil {
		return nil, FieldErrors(errs)
	}
	f := repository.ListFilter{Limit: q.Limit, Offset: q.Offset}

	side := q.Role
	if side == "" {
		switch {
		case actor.Role.IsRequester():
			side = "requester"
		case actor.Role.IsPerformer():
			side = "performer"
		default:
			return nil, FieldErrors{"role": "required"}
		}
	}
	if side == "requester" {
		f.RequesterID = actor.ID
	} else {
		f.PerformerID = actor.ID
	}

	if q.Status != "" {
		st, err := domain.ParseBookingStatus(q.Status)
		if err != nil {
			return nil, FieldErrors{"status": "oneof"}
		}
		f.Status = &st
	}
	return s.ledger.List(ctx, f)
}

func (s *Service) History(ctx context.Context, actor domain.Actor, bookingID string) ([]domain.BookingTransition, error) {
	if _, err := s.Get(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, bookingID)
}

func (s *Service) Refunds(ctx context.Context, actor domain.Actor, bookingID string) ([]domain.RefundObligation, error) {
	if _, err := s.Get(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.ledger.Refunds(ctx, bookingID)
}

type CompletionResult struct {
	Due       int `json:"due"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
}

// CompleteDue runs the clock-driven complete transition for every confirmed
// booking whose event has ended. A booking cancelled concurrently is skipped.
func (s *Service) CompleteDue(ctx context.Context, limit int) (CompletionResult, error) {
	var out CompletionResult
	ids, err := s.ledger.DueForCompletion(ctx, s.now(), limit)
	if err != nil {
		return out, err
	}
	out.Due = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		_, err := s.Transition(ctx, domain.SystemActor, id, Intent{Transition: domain.TransitionComplete}, "sweep")
		switch {
		case err == nil:
			out.Completed++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConcurrentModification):
			out.Skipped++
			s.loggerf("level=info msg=completion_skipped booking_id=%s err=%v", id, err)
		default:
			out.Skipped++
			s.loggerf("level=error msg=completion_failed booking_id=%s err=%v", id, err)
		}
	}
	return out, nil
}

func (s *Service) startSpan(ctx context.Context, t domain.Transition, bookingID string, actor domain.Actor) (context.Context, trace.Span) {
	return tracer.Start(ctx, "booking."+string(t), trace.WithAttributes(
		attribute.String("booking.id", bookingID),
		attribute.String("booking.transition", string(t)),
		attribute.String("actor.id", actor.ID),
		attribute.String("actor.role", string(actor.Role)),
	))
}

func (s *Service) endSpan(span trace.Span, res Result, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Bool("idempotent.replayed", res.Replayed))
	if res.Booking != nil {
		span.SetAttributes(
			attribute.String("booking.id", res.Booking.ID),
			attribute.String("booking.status", string(res.Booking.Status)),
		)
	}
	return nil
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
