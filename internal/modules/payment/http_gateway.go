package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPGateway talks JSON to a card processor. The idempotency key travels in
// the Idempotency-Key header so provider-side retries are deduplicated too.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type chargeBody struct {
	Amount          int64             `json:"amount"`
	PaymentMethodID string            `json:"payment_method_id"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type refundBody struct {
	Amount        int64             `json:"amount"`
	TransactionID string            `json:"transaction_id"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type gatewayReply struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	var reply gatewayReply
	err := g.post(ctx, "/charges", req.IdempotencyKey, chargeBody{
		Amount:          req.Amount,
		PaymentMethodID: req.PaymentMethodID,
		Metadata:        map[string]string{"booking_id": req.BookingID},
	}, &reply)
	if err != nil {
		return ChargeResult{}, err
	}
	return ChargeResult{TransactionID: reply.ID}, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	var reply gatewayReply
	err := g.post(ctx, "/refunds", req.IdempotencyKey, refundBody{
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
		Metadata:      map[string]string{"booking_id": req.BookingID},
	}, &reply)
	if err != nil {
		return RefundResult{}, err
	}
	return RefundResult{RefundID: reply.ID}, nil
}

func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, body any, out *gatewayReply) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(payload, out)

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrGatewayDeclined, out.Message)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrGatewayTimeout, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d: %s", ErrGatewayUnavailable, resp.StatusCode, out.Message)
	case out.ID == "":
		return fmt.Errorf("%w: empty transaction id", ErrGatewayUnavailable)
	}
	return nil
}
