package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SandboxGateway is an in-memory gateway for development and tests.
// Payment method ids starting with "pm_decline" are declined and ids starting
// with "pm_timeout" never answer.
type SandboxGateway struct {
	mu      sync.Mutex
	charges map[string]ChargeResult
	refunds map[string]RefundResult
	calls   int
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		charges: make(map[string]ChargeResult),
		refunds: make(map[string]RefundResult),
	}
}

func (g *SandboxGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	g.mu.Lock()
	g.calls++
	if res, ok := g.charges[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		g.mu.Unlock()
		return res, nil
	}
	g.mu.Unlock()

	switch {
	case req.Amount <= 0:
		return ChargeResult{}, fmt.Errorf("%w: amount must be positive", ErrGatewayDeclined)
	case strings.HasPrefix(req.PaymentMethodID, "pm_decline"):
		return ChargeResult{}, fmt.Errorf("%w: card declined", ErrGatewayDeclined)
	case strings.HasPrefix(req.PaymentMethodID, "pm_timeout"):
		<-ctx.Done()
		return ChargeResult{}, ctx.Err()
	}

	res := ChargeResult{TransactionID: "txn_" + uuid.NewString()}
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.charges[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return prev, nil
	}
	if req.IdempotencyKey != "" {
		g.charges[req.IdempotencyKey] = res
	}
	return res, nil
}

func (g *SandboxGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return RefundResult{}, err
	}
	if req.Amount <= 0 || req.TransactionID == "" {
		return RefundResult{}, fmt.Errorf("%w: invalid refund", ErrGatewayDeclined)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if res, ok := g.refunds[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return res, nil
	}
	res := RefundResult{RefundID: "rf_" + uuid.NewString()}
	if req.IdempotencyKey != "" {
		g.refunds[req.IdempotencyKey] = res
	}
	return res, nil
}

// Calls counts every Charge and Refund request received, including replays.
func (g *SandboxGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Captured counts distinct successful charges.
func (g *SandboxGateway) Captured() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}
