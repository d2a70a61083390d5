package booking

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stagebook/internal/domain"
	"stagebook/internal/middleware"
	"stagebook/internal/modules/payment"
	"stagebook/internal/pkg/response"
	"stagebook/internal/pkg/settlement"
	"stagebook/internal/pkg/validator"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 255
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	validator.RegisterGin()
	return &Handler{service: service}
}

// CreateBooking handles POST /booking/create
func (h *Handler) CreateBooking(c *gin.Context) {
	actor, token, ok := h.begin(c)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Create(c.Request.Context(), actor, req, token)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeResult(c, status, res)
}

// ListBookings handles GET /booking/list
func (h *Handler) ListBookings(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	bookings, err := h.service.List(c.Request.Context(), actor, q)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": bookings})
}

// GetBooking handles GET /booking/:id
func (h *Handler) GetBooking(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	b, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

// UpdateBooking handles PATCH /booking/:id
func (h *Handler) UpdateBooking(c *gin.Context) {
	actor, token, ok := h.begin(c)
	if !ok {
		return
	}

	var req UpdateBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.IsEmpty() {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Nothing to update")
		return
	}

	res, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req, token)
	h.respond(c, res, err)
}

// AcceptBooking handles PUT /booking/:id/accept
func (h *Handler) AcceptBooking(c *gin.Context) {
	actor, token, ok := h.begin(c)
	if !ok {
		return
	}

	res, err := h.service.Accept(c.Request.Context(), actor, c.Param("id"), token)
	h.respond(c, res, err)
}

// RejectBooking handles PUT /booking/:id/reject
func (h *Handler) RejectBooking(c *gin.Context) {
	actor, token, ok := h.begin(c)
	if !ok {
		return
	}

	var req RejectRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Reject(c.Request.Context(), actor, c.Param("id"), req.RejectionReason, token)
	h.respond(c, res, err)
}

// PayDeposit handles POST /booking/:id/pay-deposit
func (h *Handler) PayDeposit(c *gin.Context) {
	actor, token, ok := h.begin(c)
	if !ok {
		return
	}

	var req PayRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.PayDeposit(c.Request.Context(), actor, c.Param("id"), req.PaymentMethodID, token)
	h.respond(c, res, err)
}

// PayFinal handles POST /booking/:id/pay-final
func (h *Handler) PayFinal(c *gin.Context) {
	actor, token, ok := h.begin(c)
	if !ok {
		return
	}

	var req PayRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.PayFinal(c.Request.Context(), actor, c.Param("id"), req.PaymentMethodID, token)
	h.respond(c, res, err)
}

// CancelBooking handles PUT /booking/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	actor, token, ok := h.begin(c)
	if !ok {
		return
	}

	var req CancelRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Cancel(c.Request.Context(), actor, c.Param("id"), req.CancellationReason, token)
	h.respond(c, res, err)
}

// GetHistory handles GET /booking/:id/history
func (h *Handler) GetHistory(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	entries, err := h.service.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"history": entries})
}

// GetRefunds handles GET /booking/:id/refunds
func (h *Handler) GetRefunds(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	refunds, err := h.service.Refunds(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"refunds": refunds})
}

// begin reads the caller and the optional idempotency key shared by every write.
func (h *Handler) begin(c *gin.Context) (actor domain.Actor, token string, ok bool) {
	actor, ok = middleware.ActorFrom(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return actor, "", false
	}
	token = c.GetHeader(idempotencyKeyHeader)
	if len(token) > maxIdempotencyKeyLen {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid idempotency key",
			map[string]string{idempotencyKeyHeader: "max"})
		return actor, "", false
	}
	return actor, token, true
}

func (h *Handler) respond(c *gin.Context, res Result, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	writeResult(c, http.StatusOK, res)
}

func writeResult(c *gin.Context, status int, res Result) {
	if res.Replayed {
		c.Header(replayedHeader, "true")
	}
	response.Success(c, status, gin.H{"booking": res.Booking})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

func writeBindError(c *gin.Context, err error) {
	if fields, ok := validator.Fields(err); ok {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", fields)
		return
	}
	response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
}

func (h *Handler) fail(c *gin.Context, err error) {
	var fields FieldErrors
	switch {
	case errors.As(err, &fields):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", map[string]string(fields))
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, settlement.ErrInvalidAmount):
		response.Error(c, http.StatusBadRequest, "INVALID_AMOUNT", "Offered price must be a positive whole amount")
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied for this booking")
	case errors.Is(err, ErrInvalidTransition):
		response.Error(c, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, ErrIdempotencyKeyReused):
		response.Error(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "Idempotency key was used with a different request")
	case errors.Is(err, ErrConcurrentModification):
		response.RetryableError(c, http.StatusConflict, "CONCURRENT_MODIFICATION", "Booking was modified concurrently, retry")
	case errors.Is(err, payment.ErrGatewayTimeout):
		response.RetryableError(c, http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "Payment gateway timed out")
	case errors.Is(err, payment.ErrGatewayDeclined):
		response.RetryableError(c, http.StatusPaymentRequired, "GATEWAY_DECLINED", "Payment was declined")
	case errors.Is(err, payment.ErrGatewayUnavailable):
		response.RetryableError(c, http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "Payment gateway unavailable")
	case errors.Is(err, settlement.ErrInvalidRate):
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INVALID_RATE", "Settlement rates are misconfigured")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
