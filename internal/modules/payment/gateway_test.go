package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandbox_DeduplicatesByKey(t *testing.T) {
	g := NewSandboxGateway()
	ctx := context.Background()

	req := ChargeRequest{BookingID: "b-1", Amount: 18000, PaymentMethodID: "pm_card", IdempotencyKey: "b-1:pay_deposit:t1"}
	first, err := g.Charge(ctx, req)
	require.NoError(t, err)
	second, err := g.Charge(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, g.Captured())
	assert.Equal(t, 2, g.Calls())

	req.IdempotencyKey = "b-1:pay_deposit:t2"
	third, err := g.Charge(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.TransactionID, third.TransactionID)
	assert.Equal(t, 2, g.Captured())
}

func TestSandbox_Declines(t *testing.T) {
	g := NewSandboxGateway()
	_, err := g.Charge(context.Background(), ChargeRequest{Amount: 10, PaymentMethodID: "pm_decline_insufficient", IdempotencyKey: "k"})
	assert.ErrorIs(t, err, ErrGatewayDeclined)
	assert.Equal(t, 0, g.Captured())
}

func TestBounded_TimesOut(t *testing.T) {
	g := NewBounded(NewSandboxGateway(), 20*time.Millisecond)

	start := time.Now()
	_, err := g.Charge(context.Background(), ChargeRequest{Amount: 10, PaymentMethodID: "pm_timeout", IdempotencyKey: "k"})
	assert.ErrorIs(t, err, ErrGatewayTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBounded_PassesThroughDecline(t *testing.T) {
	g := NewBounded(NewSandboxGateway(), time.Second)
	_, err := g.Charge(context.Background(), ChargeRequest{Amount: 10, PaymentMethodID: "pm_decline", IdempotencyKey: "k"})
	assert.ErrorIs(t, err, ErrGatewayDeclined)
	assert.NotErrorIs(t, err, ErrGatewayTimeout)
}

func TestSandbox_RefundDeduplicates(t *testing.T) {
	g := NewSandboxGateway()
	req := RefundRequest{BookingID: "b-1", Amount: 9000, TransactionID: "txn_1", IdempotencyKey: "ref-1"}

	a, err := g.Refund(context.Background(), req)
	require.NoError(t, err)
	b, err := g.Refund(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = g.Refund(context.Background(), RefundRequest{Amount: 0, TransactionID: "txn_1", IdempotencyKey: "ref-2"})
	assert.ErrorIs(t, err, ErrGatewayDeclined)
}

func TestHTTPGateway_Charge(t *testing.T) {
	var gotKey, gotAuth string
	var body chargeBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charges", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"txn_remote"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL+"/", "sk_test", srv.Client())
	res, err := g.Charge(context.Background(), ChargeRequest{BookingID: "b-1", Amount: 42000, PaymentMethodID: "pm_1", IdempotencyKey: "b-1:pay_final:t"})
	require.NoError(t, err)

	assert.Equal(t, "txn_remote", res.TransactionID)
	assert.Equal(t, "b-1:pay_final:t", gotKey)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, int64(42000), body.Amount)
	assert.Equal(t, "b-1", body.Metadata["booking_id"])
}

func TestHTTPGateway_ErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusPaymentRequired, ErrGatewayDeclined},
		{http.StatusGatewayTimeout, ErrGatewayTimeout},
		{http.StatusInternalServerError, ErrGatewayUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"message":"nope"}`))
		}))
		_, err := NewHTTPGateway(srv.URL, "", srv.Client()).Refund(context.Background(), RefundRequest{Amount: 1, TransactionID: "t", IdempotencyKey: "k"})
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		srv.Close()
	}
}

func TestHTTPGateway_TimeoutThroughBounded(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	g := NewBounded(NewHTTPGateway(srv.URL, "", srv.Client()), 30*time.Millisecond)
	_, err := g.Charge(context.Background(), ChargeRequest{Amount: 1, PaymentMethodID: "pm", IdempotencyKey: "k"})
	assert.ErrorIs(t, err, ErrGatewayTimeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
