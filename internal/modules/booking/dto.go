package booking

import "stagebook/internal/domain"

type CreateBookingRequest struct {
	PerformerID      string  `json:"performerId" binding:"required,max=64"`
	EventType        string  `json:"eventType" binding:"required,eventtype"`
	EventTitle       string  `json:"eventTitle" binding:"required,max=200"`
	EventDescription string  `json:"eventDescription" binding:"max=4000"`
	EventDate        string  `json:"eventDate" binding:"required,eventdate"`
	StartTime        string  `json:"startTime" binding:"required,clock"`
	DurationHours    float64 `json:"durationHours" binding:"required,gt=0,lte=24"`
	VenueAddress     string  `json:"venueAddress" binding:"max=500"`
	VenueCity        string  `json:"venueCity" binding:"max=120"`
	ExpectedAudience *int    `json:"expectedAudience" binding:"omitempty,min=0"`
	// positivity is checked by the settlement calculator so it surfaces as INVALID_AMOUNT
	OfferedPrice int64 `json:"offeredPrice"`
}

// UpdateBookingRequest patches descriptive fields; nil means unchanged.
type UpdateBookingRequest struct {
	EventTitle       *string  `json:"eventTitle" binding:"omitempty,min=1,max=200"`
	EventDescription *string  `json:"eventDescription" binding:"omitempty,max=4000"`
	EventDate        *string  `json:"eventDate" binding:"omitempty,eventdate"`
	StartTime        *string  `json:"startTime" binding:"omitempty,clock"`
	DurationHours    *float64 `json:"durationHours" binding:"omitempty,gt=0,lte=24"`
	VenueAddress     *string  `json:"venueAddress" binding:"omitempty,max=500"`
	VenueCity        *string  `json:"venueCity" binding:"omitempty,max=120"`
	ExpectedAudience *int     `json:"expectedAudience" binding:"omitempty,min=0"`
}

func (r UpdateBookingRequest) IsEmpty() bool {
	return r.EventTitle == nil && r.EventDescription == nil && r.EventDate == nil &&
		r.StartTime == nil && r.DurationHours == nil && r.VenueAddress == nil &&
		r.VenueCity == nil && r.ExpectedAudience == nil
}

type RejectRequest struct {
	RejectionReason string `json:"rejectionReason" binding:"max=2000"`
}

type CancelRequest struct {
	CancellationReason string `json:"cancellationReason" binding:"max=2000"`
}

type PayRequest struct {
	PaymentMethodID string `json:"paymentMethodId" binding:"required,max=128"`
}

type ListQuery struct {
	Role   string `form:"role" binding:"omitempty,oneof=requester performer"`
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// Intent is one requested transition with its payload.
type Intent struct {
	Transition      domain.Transition     `json:"transition"`
	Reason          string                `json:"reason,omitempty"`
	PaymentMethodID string                `json:"paymentMethodId,omitempty"`
	Update          *UpdateBookingRequest `json:"update,omitempty"`
}

// Result is the booking after a transition. Replayed is set when the
// result came from the idempotency cache instead of a new execution.
type Result struct {
	Booking  *domain.Booking
	Replayed bool
}
