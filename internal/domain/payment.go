package domain

import "time"

type CaptureKind string

const (
	CaptureDeposit CaptureKind = "deposit"
	CaptureFinal   CaptureKind = "final"
)

// PaymentCapture is money taken from the requester by the gateway.
type PaymentCapture struct {
	ID             string      `json:"id"`
	BookingID      string      `json:"bookingId"`
	Kind           CaptureKind `json:"kind"`
	Amount         int64       `json:"amount"`
	TransactionID  string      `json:"transactionId"`
	IdempotencyKey string      `json:"idempotencyKey"`
	CapturedAt     time.Time   `json:"capturedAt"`
}

type RefundStatus string

const (
	RefundPending    RefundStatus = "pending"
	RefundProcessing RefundStatus = "processing"
	RefundRefunded   RefundStatus = "refunded"
	RefundFailed     RefundStatus = "failed"
)

// RefundObligation is recorded in the same commit as a cancel and settled
// asynchronously by the refund processor.
type RefundObligation struct {
	ID             string       `json:"id"`
	BookingID      string       `json:"bookingId"`
	CaptureID      string       `json:"captureId"`
	TransactionID  string       `json:"transactionId"`
	CapturedAmount int64        `json:"capturedAmount"`
	Amount         int64        `json:"amount"`
	FullRefund     bool         `json:"fullRefund"`
	Status         RefundStatus `json:"status"`
	Attempts       int          `json:"attempts"`
	LastError      string       `json:"lastError,omitempty"`
	RefundID       string       `json:"refundId,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	RefundedAt     *time.Time   `json:"refundedAt,omitempty"`
}
