package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"stagebook/internal/modules/booking"
	"stagebook/internal/modules/payment"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) CompleteDue(ctx context.Context, limit int) (booking.CompletionResult, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).(booking.CompletionResult), args.Error(1)
}

type MockRefunds struct {
	mock.Mock
}

func (m *MockRefunds) ProcessRefunds(ctx context.Context) (payment.RefundRunResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(payment.RefundRunResult), args.Error(1)
}

func TestScheduler_TicksBothJobs(t *testing.T) {
	completer := new(MockCompleter)
	refunds := new(MockRefunds)
	completer.On("CompleteDue", mock.Anything, 10).Return(booking.CompletionResult{Due: 1, Completed: 1}, nil)
	refunds.On("ProcessRefunds", mock.Anything).Return(payment.RefundRunResult{}, errors.New("db error"))

	s := New(completer, refunds, Config{
		CompletionInterval: 20 * time.Millisecond,
		RefundInterval:     20 * time.Millisecond,
		BatchSize:          10,
	}, t.Logf)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	assert.GreaterOrEqual(t, len(completer.Calls), 1)
	assert.GreaterOrEqual(t, len(refunds.Calls), 1)
}

func TestScheduler_RunOnce(t *testing.T) {
	completer := new(MockCompleter)
	refunds := new(MockRefunds)
	completer.On("CompleteDue", mock.Anything, 100).Return(booking.CompletionResult{}, nil).Once()
	refunds.On("ProcessRefunds", mock.Anything).Return(payment.RefundRunResult{Claimed: 2, Refunded: 2}, nil).Once()

	New(completer, refunds, Config{}, nil).RunOnce(context.Background())

	completer.AssertExpectations(t)
	refunds.AssertExpectations(t)
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := New(new(MockCompleter), new(MockRefunds), Config{
		CompletionInterval: time.Second,
		RefundInterval:     time.Second,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}
