package booking

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagebook/internal/domain"
	"stagebook/internal/middleware"
	"stagebook/internal/pkg/jwt"
)

type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		Booking  *domain.Booking           `json:"booking"`
		Bookings []*domain.Booking         `json:"bookings"`
		Refunds  []domain.RefundObligation `json:"refunds"`
	} `json:"data"`
	Error struct {
		Code      string            `json:"code"`
		Retryable bool              `json:"retryable"`
		Details   map[string]string `json:"details"`
	} `json:"error"`
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	tokens *jwt.Service
	fix    *fixture
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFixture(t)
	tokens := jwt.New("test-secret", time.Hour, "stagebook")

	r := gin.New()
	api := r.Group("/api/v1", middleware.JWTAuth(tokens))
	NewHandler(f.svc).RegisterRoutes(api)

	return &apiClient{t: t, router: r, tokens: tokens, fix: f}
}

func (a *apiClient) token(actor domain.Actor) string {
	tok, err := a.tokens.GenerateToken(actor.ID, actor.Role)
	require.NoError(a.t, err)
	return tok
}

func (a *apiClient) do(actor domain.Actor, method, path string, body any, idemKey string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token(actor))
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (a *apiClient) createBooking() *domain.Booking {
	a.t.Helper()
	w, env := a.do(venue, http.MethodPost, "/booking/create", createReq(), "")
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(a.t, env.Data.Booking)
	return env.Data.Booking
}

func TestHandler_CreateAndReplay(t *testing.T) {
	api := newAPI(t)

	w, env := api.do(venue, http.MethodPost, "/booking/create", createReq(), "create-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, domain.BookingPending, env.Data.Booking.Status)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
	firstID := env.Data.Booking.ID

	w, env = api.do(venue, http.MethodPost, "/booking/create", createReq(), "create-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, firstID, env.Data.Booking.ID)
}

func TestHandler_CreateValidation(t *testing.T) {
	api := newAPI(t)

	req := createReq()
	req.OfferedPrice = 0
	w, env := api.do(venue, http.MethodPost, "/booking/create", req, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_AMOUNT", env.Error.Code)

	req = createReq()
	req.EventType = "karaoke"
	req.StartTime = "8pm"
	w, env = api.do(venue, http.MethodPost, "/booking/create", req, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Equal(t, "eventtype", env.Error.Details["eventType"])
	assert.Equal(t, "clock", env.Error.Details["startTime"])

	w, env = api.do(dj, http.MethodPost, "/booking/create", createReq(), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestHandler_AcceptFlow(t *testing.T) {
	api := newAPI(t)
	b := api.createBooking()

	w, env := api.do(stranger, http.MethodGet, "/booking/"+b.ID, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	w, env = api.do(venue, http.MethodPut, "/booking/"+b.ID+"/accept", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Error.Retryable)

	w, env = api.do(dj, http.MethodPut, "/booking/"+b.ID+"/accept", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.BookingAccepted, env.Data.Booking.Status)
	require.True(t, env.Data.Booking.IsSettled())
	assert.Equal(t, int64(6000), *env.Data.Booking.PlatformCommission)
	assert.Equal(t, int64(54000), *env.Data.Booking.PerformerFee)
	assert.Equal(t, int64(18000), *env.Data.Booking.DepositAmount)
	assert.Equal(t, int64(42000), *env.Data.Booking.FinalAmount)

	w, env = api.do(dj, http.MethodPut, "/booking/"+b.ID+"/accept", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	w, env = api.do(dj, http.MethodPut, "/booking/"+b.ID+"/reject", RejectRequest{RejectionReason: "late"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	w, env = api.do(dj, http.MethodGet, "/booking/list", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.Data.Bookings, 1)

	w, env = api.do(venue, http.MethodGet, "/booking/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestHandler_PaymentErrors(t *testing.T) {
	api := newAPI(t)
	b := api.createBooking()
	w, _ := api.do(dj, http.MethodPut, "/booking/"+b.ID+"/accept", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, env := api.do(venue, http.MethodPost, "/booking/"+b.ID+"/pay-deposit", PayRequest{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, env = api.do(venue, http.MethodPost, "/booking/"+b.ID+"/pay-deposit", PayRequest{PaymentMethodID: "pm_decline_1"}, "dep-1")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "GATEWAY_DECLINED", env.Error.Code)
	assert.True(t, env.Error.Retryable)

	w, env = api.do(venue, http.MethodPost, "/booking/"+b.ID+"/pay-deposit", PayRequest{PaymentMethodID: "pm_timeout"}, "dep-1")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "GATEWAY_TIMEOUT", env.Error.Code)
	assert.True(t, env.Error.Retryable)

	w, env = api.do(venue, http.MethodPost, "/booking/"+b.ID+"/pay-deposit", PayRequest{PaymentMethodID: "pm_card"}, "dep-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.BookingDepositPaid, env.Data.Booking.Status)

	w, env = api.do(venue, http.MethodPost, "/booking/"+b.ID+"/pay-deposit", PayRequest{PaymentMethodID: "pm_card"}, "dep-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))

	w, env = api.do(venue, http.MethodPost, "/booking/"+b.ID+"/pay-deposit", PayRequest{PaymentMethodID: "pm_other"}, "dep-1")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSED", env.Error.Code)

	// final payment window has not opened yet
	w, env = api.do(venue, http.MethodPost, "/booking/"+b.ID+"/pay-final", PayRequest{PaymentMethodID: "pm_card"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
}

func TestHandler_CancelAndRefunds(t *testing.T) {
	api := newAPI(t)
	b := api.createBooking()
	w, _ := api.do(dj, http.MethodPut, "/booking/"+b.ID+"/accept", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = api.do(venue, http.MethodPost, "/booking/"+b.ID+"/pay-deposit", PayRequest{PaymentMethodID: "pm_card"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, env := api.do(venue, http.MethodPut, "/booking/"+b.ID+"/cancel", CancelRequest{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "required", env.Error.Details["cancellationReason"])

	api.fix.setClock(time.Date(2026, 6, 18, 20, 0, 0, 0, time.UTC))
	w, env = api.do(venue, http.MethodPut, "/booking/"+b.ID+"/cancel", CancelRequest{CancellationReason: "Venue flooded"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.BookingCancelled, env.Data.Booking.Status)

	w, env = api.do(dj, http.MethodGet, "/booking/"+b.ID+"/refunds", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.Data.Refunds, 1)
	assert.Equal(t, int64(9000), env.Data.Refunds[0].Amount)
}

func TestHandler_UpdateAndHistory(t *testing.T) {
	api := newAPI(t)
	b := api.createBooking()

	w, env := api.do(venue, http.MethodPatch, "/booking/"+b.ID, map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, env = api.do(venue, http.MethodPatch, "/booking/"+b.ID, map[string]any{"eventTitle": "Late Set"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Late Set", env.Data.Booking.EventTitle)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/booking/"+b.ID+"/history", nil)
	req.Header.Set("Authorization", "Bearer "+api.token(dj))
	api.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Data struct {
			History []domain.BookingTransition `json:"history"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Data.History, 2)
	assert.Equal(t, domain.TransitionUpdate, out.Data.History[1].Transition)
}

func TestHandler_RequiresAuthentication(t *testing.T) {
	api := newAPI(t)

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/booking/list", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_HEADER_MISSING")
}
