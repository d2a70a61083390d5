package notification

import (
	"time"

	"stagebook/internal/domain"
)

// BookingEvent signals that a transition was committed to the ledger.
type BookingEvent struct {
	Type        string               `json:"type"`
	BookingID   string               `json:"bookingId"`
	RequesterID string               `json:"requesterId"`
	PerformerID string               `json:"performerId"`
	Transition  domain.Transition    `json:"transition"`
	Status      domain.BookingStatus `json:"status"`
	ActorID     string               `json:"actorId"`
	ActorRole   domain.Role          `json:"actorRole"`
	Version     int64                `json:"version"`
	OccurredAt  time.Time            `json:"occurredAt"`
	Booking     *domain.Booking      `json:"booking,omitempty"`
}

func NewBookingEvent(b *domain.Booking, t domain.Transition, actor domain.Actor, at time.Time) BookingEvent {
	return BookingEvent{
		Type:        "booking." + string(t),
		BookingID:   b.ID,
		RequesterID: b.RequesterID,
		PerformerID: b.PerformerID,
		Transition:  t,
		Status:      b.Status,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Version:     b.Version,
		OccurredAt:  at.UTC(),
		Booking:     b,
	}
}

// Recipients are the users who observe the booking.
func (e BookingEvent) Recipients() []string {
	if e.RequesterID == e.PerformerID {
		return []string{e.RequesterID}
	}
	return []string{e.RequesterID, e.PerformerID}
}
