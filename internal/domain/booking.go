package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownStatus    = errors.New("unknown booking status")
	ErrUnknownEventType = errors.New("unknown event type")
)

type BookingStatus string

const (
	BookingPending     BookingStatus = "pending"
	BookingAccepted    BookingStatus = "accepted"
	BookingRejected    BookingStatus = "rejected"
	BookingDepositPaid BookingStatus = "deposit_paid"
	BookingConfirmed   BookingStatus = "confirmed"
	BookingCompleted   BookingStatus = "completed"
	BookingCancelled   BookingStatus = "cancelled"
)

var bookingStatuses = map[BookingStatus]struct{}{
	BookingPending:     {},
	BookingAccepted:    {},
	BookingRejected:    {},
	BookingDepositPaid: {},
	BookingConfirmed:   {},
	BookingCompleted:   {},
	BookingCancelled:   {},
}

// ParseBookingStatus is the only way a status enters the system from text.
func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

func (s BookingStatus) Valid() bool {
	_, ok := bookingStatuses[s]
	return ok
}

// IsTerminal reports whether no further transition may leave s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingRejected || s == BookingCancelled || s == BookingCompleted
}

func (s *BookingStatus) UnmarshalText(b []byte) error {
	st, err := ParseBookingStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Scan rejects statuses outside the closed set when read from storage.
func (s *BookingStatus) Scan(src any) error {
	v, err := scanString(src)
	if err != nil {
		return err
	}
	return s.UnmarshalText([]byte(v))
}

func (s BookingStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, string(s))
	}
	return string(s), nil
}

type EventType string

const (
	EventDJSet            EventType = "dj_set"
	EventLiveBand         EventType = "live_band"
	EventAcousticSet      EventType = "acoustic_set"
	EventVocalPerformance EventType = "vocal_performance"
)

func ParseEventType(s string) (EventType, error) {
	et := EventType(s)
	if !et.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
	return et, nil
}

func (e EventType) Valid() bool {
	switch e {
	case EventDJSet, EventLiveBand, EventAcousticSet, EventVocalPerformance:
		return true
	}
	return false
}

func (e *EventType) UnmarshalText(b []byte) error {
	et, err := ParseEventType(string(b))
	if err != nil {
		return err
	}
	*e = et
	return nil
}

func (e *EventType) Scan(src any) error {
	v, err := scanString(src)
	if err != nil {
		return err
	}
	return e.UnmarshalText([]byte(v))
}

func (e EventType) Value() (driver.Value, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, string(e))
	}
	return string(e), nil
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported scan type %T", src)
	}
}

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Booking is a venue's request for a performer to appear at an event.
// Money fields are whole currency units; settlement fields stay nil until acceptance.
type Booking struct {
	ID          string `json:"id"`
	RequesterID string `json:"requesterId"`
	PerformerID string `json:"performerId"`

	EventType        EventType `json:"eventType"`
	EventTitle       string    `json:"eventTitle"`
	EventDescription string    `json:"eventDescription,omitempty"`
	EventDate        string    `json:"eventDate"`
	StartTime        string    `json:"startTime"`
	DurationHours    float64   `json:"durationHours"`
	VenueAddress     string    `json:"venueAddress,omitempty"`
	VenueCity        string    `json:"venueCity,omitempty"`
	ExpectedAudience *int      `json:"expectedAudience,omitempty"`

	// EventStartsAt and EventEndsAt are resolved from EventDate, StartTime and
	// DurationHours in the engine's configured location.
	EventStartsAt time.Time `json:"eventStartsAt"`
	EventEndsAt   time.Time `json:"eventEndsAt"`

	OfferedPrice       int64  `json:"offeredPrice"`
	PlatformCommission *int64 `json:"platformCommission"`
	PerformerFee       *int64 `json:"performerFee"`
	DepositAmount      *int64 `json:"depositAmount"`
	FinalAmount        *int64 `json:"finalAmount"`

	Status             BookingStatus `json:"status"`
	RejectionReason    *string       `json:"rejectionReason,omitempty"`
	CancellationReason *string       `json:"cancellationReason,omitempty"`
	CancelledBy        *string       `json:"cancelledBy,omitempty"`

	CreatedAt     time.Time  `json:"createdAt"`
	AcceptedAt    *time.Time `json:"acceptedAt,omitempty"`
	RejectedAt    *time.Time `json:"rejectedAt,omitempty"`
	DepositPaidAt *time.Time `json:"depositPaidAt,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	Version int64 `json:"version"`
}

func (b *Booking) IsParty(userID string) bool {
	return userID != "" && (b.RequesterID == userID || b.PerformerID == userID)
}

// IsSettled reports whether the settlement split has been fixed.
func (b *Booking) IsSettled() bool {
	return b.PlatformCommission != nil && b.PerformerFee != nil &&
		b.DepositAmount != nil && b.FinalAmount != nil
}

// ResolveSchedule computes the event start and end instants in loc.
func ResolveSchedule(eventDate, startTime string, durationHours float64, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, eventDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("eventDate: %w", err)
	}
	clock, err := time.Parse(ClockLayout, startTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("startTime: %w", err)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc).UTC()
	end := start.Add(time.Duration(durationHours * float64(time.Hour)))
	return start, end, nil
}
