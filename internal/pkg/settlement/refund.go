package settlement

import "time"

// RefundPolicy decides how much captured money goes back to the requester on cancel.
type RefundPolicy struct {
	FullRefundLeadTime        time.Duration
	PartialRefundRate         Rate
	PerformerCancelFullRefund bool
}

var DefaultRefundPolicy = RefundPolicy{
	FullRefundLeadTime:        5 * 24 * time.Hour,
	PartialRefundRate:         MustParseRate("0.5"),
	PerformerCancelFullRefund: true,
}

// IsFull reports whether a cancel at cancelledAt earns a full refund.
func (p RefundPolicy) IsFull(eventStartsAt, cancelledAt time.Time, byPerformer bool) bool {
	if byPerformer && p.PerformerCancelFullRefund {
		return true
	}
	return eventStartsAt.Sub(cancelledAt) >= p.FullRefundLeadTime
}

// Amount returns the refund owed for one capture.
func (p RefundPolicy) Amount(captured int64, full bool) int64 {
	if captured <= 0 {
		return 0
	}
	if full {
		return captured
	}
	return p.PartialRefundRate.Apply(captured)
}
