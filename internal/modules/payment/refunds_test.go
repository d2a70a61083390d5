package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stagebook/internal/domain"
)

type MockRefundStore struct {
	mock.Mock
}

func (m *MockRefundStore) ClaimRefunds(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.RefundObligation, error) {
	args := m.Called(ctx, now, lease, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RefundObligation), args.Error(1)
}

func (m *MockRefundStore) MarkRefundSettled(ctx context.Context, id, refundID string, now time.Time) error {
	args := m.Called(ctx, id, refundID, now)
	return args.Error(0)
}

func (m *MockRefundStore) MarkRefundRetry(ctx context.Context, id, lastErr string, maxAttempts int, now time.Time) (domain.RefundStatus, error) {
	args := m.Called(ctx, id, lastErr, maxAttempts, now)
	return args.Get(0).(domain.RefundStatus), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ChargeResult), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(RefundResult), args.Error(1)
}

func TestProcessRefunds(t *testing.T) {
	store := new(MockRefundStore)
	gw := new(MockGateway)
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	claimed := []domain.RefundObligation{
		{ID: "ref-1", BookingID: "b-1", TransactionID: "txn-1", Amount: 18000, Attempts: 1},
		{ID: "ref-2", BookingID: "b-2", TransactionID: "txn-2", Amount: 9000, Attempts: 1},
		{ID: "ref-3", BookingID: "b-3", TransactionID: "txn-3", Amount: 500, Attempts: 3},
	}
	store.On("ClaimRefunds", mock.Anything, now, 5*time.Minute, 10).Return(claimed, nil)

	gw.On("Refund", mock.Anything, RefundRequest{BookingID: "b-1", Amount: 18000, TransactionID: "txn-1", IdempotencyKey: "ref-1"}).
		Return(RefundResult{RefundID: "rf-1"}, nil)
	gw.On("Refund", mock.Anything, mock.MatchedBy(func(r RefundRequest) bool { return r.IdempotencyKey == "ref-2" })).
		Return(RefundResult{}, ErrGatewayTimeout)
	gw.On("Refund", mock.Anything, mock.MatchedBy(func(r RefundRequest) bool { return r.IdempotencyKey == "ref-3" })).
		Return(RefundResult{}, ErrGatewayDeclined)

	store.On("MarkRefundSettled", mock.Anything, "ref-1", "rf-1", now).Return(nil)
	store.On("MarkRefundRetry", mock.Anything, "ref-2", ErrGatewayTimeout.Error(), 3, now).Return(domain.RefundPending, nil)
	store.On("MarkRefundRetry", mock.Anything, "ref-3", ErrGatewayDeclined.Error(), 3, now).Return(domain.RefundFailed, nil)

	p := NewRefundProcessor(store, gw, RefundConfig{BatchSize: 10, Lease: 5 * time.Minute, MaxAttempts: 3}, nil)
	p.now = func() time.Time { return now }

	res, err := p.ProcessRefunds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RefundRunResult{Claimed: 3, Refunded: 1, Retried: 1, Failed: 1}, res)

	store.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestProcessRefunds_ClaimError(t *testing.T) {
	store := new(MockRefundStore)
	gw := new(MockGateway)
	store.On("ClaimRefunds", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	p := NewRefundProcessor(store, gw, RefundConfig{}, nil)
	_, err := p.ProcessRefunds(context.Background())
	assert.Error(t, err)
	gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
}
