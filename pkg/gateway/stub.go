package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// StubClient is a no-op gateway for development and tests. Every checkout
// succeeds; signatures verify when they equal "stub".
type StubClient struct {
	seq atomic.Int64
}

func NewStubClient() *StubClient {
	return &StubClient{}
}

func (s *StubClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	id := s.seq.Add(1)
	return &Checkout{
		GatewayOrderID: fmt.Sprintf("stub-%d", id),
		PaymentKey:     fmt.Sprintf("stub-key-%d", id),
		RedirectURL:    fmt.Sprintf("https://stub.local/checkout/%d?ref=%s", id, req.MerchantOrderRef),
		Raw:            fmt.Sprintf(`{"id":"stub-%d"}`, id),
	}, nil
}

func (s *StubClient) ParseCallback(raw []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, err
	}
	cb.Raw = string(raw)
	return &cb, nil
}

func (s *StubClient) VerifySignature(cb *Callback, provided string) bool {
	return provided == "stub"
}

func (s *StubClient) InquireTransaction(ctx context.Context, merchantOrderRef string) (*Callback, error) {
	return nil, ErrTransactionNotFound
}
