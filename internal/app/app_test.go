package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagebook/internal/config"
	"stagebook/internal/domain"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "file:app_"+uuid.NewString()+"?mode=memory&cache=shared")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg, err := config.Parse()
	require.NoError(t, err)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func call(t *testing.T, a *App, actor *domain.Actor, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		tok, err := a.Tokens.GenerateToken(actor.ID, actor.Role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)

	w, env := call(t, a, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok","observers":0}`, string(env.Data))
}

func TestBookingCancelAndRefundSweep(t *testing.T) {
	a := newTestApp(t)

	venue := domain.Actor{ID: "venue-1", Role: domain.RoleVenue}
	dj := domain.Actor{ID: "dj-1", Role: domain.RoleDJ}
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	w, env := call(t, a, &venue, http.MethodPost, "/api/v1/booking/create", map[string]any{
		"performerId":   dj.ID,
		"eventType":     "dj_set",
		"eventTitle":    "Warehouse Night",
		"eventDate":     time.Now().UTC().AddDate(0, 0, 30).Format(domain.DateLayout),
		"startTime":     "22:00",
		"durationHours": 4,
		"offeredPrice":  60000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Booking domain.Booking `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	id := created.Booking.ID

	w, _ = call(t, a, &dj, http.MethodPut, "/api/v1/booking/"+id+"/accept", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = call(t, a, &venue, http.MethodPost, "/api/v1/booking/"+id+"/pay-deposit", map[string]string{"paymentMethodId": "pm_card"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = call(t, a, &venue, http.MethodPut, "/api/v1/booking/"+id+"/cancel", map[string]string{"cancellationReason": "venue closed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = call(t, a, &venue, http.MethodPost, "/api/v1/admin/sweep", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	w, env = call(t, a, &admin, http.MethodPost, "/api/v1/admin/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sweep struct {
		Refunds struct {
			Claimed  int `json:"claimed"`
			Refunded int `json:"refunded"`
		} `json:"refunds"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sweep))
	assert.Equal(t, 1, sweep.Refunds.Claimed)
	assert.Equal(t, 1, sweep.Refunds.Refunded)

	w, env = call(t, a, &venue, http.MethodGet, "/api/v1/booking/"+id+"/refunds", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var refunds struct {
		Refunds []domain.RefundObligation `json:"refunds"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &refunds))
	require.Len(t, refunds.Refunds, 1)
	assert.Equal(t, int64(18000), refunds.Refunds[0].Amount)
	assert.True(t, refunds.Refunds[0].FullRefund)
	assert.Equal(t, domain.RefundRefunded, refunds.Refunds[0].Status)
}

func TestAPIRequiresToken(t *testing.T) {
	a := newTestApp(t)

	w, env := call(t, a, nil, http.MethodGet, "/api/v1/booking/list", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_HEADER_MISSING", env.Error.Code)
}
