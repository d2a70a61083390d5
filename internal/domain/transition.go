package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownTransition = errors.New("unknown transition")

type Transition string

const (
	TransitionCreate     Transition = "create"
	TransitionUpdate     Transition = "update"
	TransitionAccept     Transition = "accept"
	TransitionReject     Transition = "reject"
	TransitionPayDeposit Transition = "pay_deposit"
	TransitionPayFinal   Transition = "pay_final"
	TransitionCancel     Transition = "cancel"
	TransitionComplete   Transition = "complete"
)

func ParseTransition(s string) (Transition, error) {
	t := Transition(s)
	switch t {
	case TransitionCreate, TransitionUpdate, TransitionAccept, TransitionReject,
		TransitionPayDeposit, TransitionPayFinal, TransitionCancel, TransitionComplete:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTransition, s)
}

// BookingTransition is one immutable ledger entry. Sequence equals the booking
// version produced by the transition.
type BookingTransition struct {
	ID            string        `json:"id"`
	BookingID     string        `json:"bookingId"`
	Sequence      int64         `json:"sequence"`
	Transition    Transition    `json:"transition"`
	FromStatus    BookingStatus `json:"fromStatus,omitempty"`
	ToStatus      BookingStatus `json:"toStatus"`
	ActorID       string        `json:"actorId"`
	ActorRole     Role          `json:"actorRole"`
	RequestToken  string        `json:"requestToken,omitempty"`
	Reason        *string       `json:"reason,omitempty"`
	TransactionID *string       `json:"transactionId,omitempty"`
	OccurredAt    time.Time     `json:"occurredAt"`
}
