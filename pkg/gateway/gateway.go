package gateway

import (
	"context"
	"errors"
	"net"
)

// CheckoutRequest carries everything needed to register an order and mint a
// hosted-checkout redirect for it. Amounts are minor units (piasters for EGP).
type CheckoutRequest struct {
	MerchantOrderRef string
	AmountCents      int64
	Currency         string
	ItemName         string
	FirstName        string
	LastName         string
	Email            string
	Phone            string
}

// Checkout is the result of a successful order + payment key registration.
type Checkout struct {
	GatewayOrderID string
	PaymentKey     string
	RedirectURL    string
	Raw            string
}

// Callback is a parsed transaction notification. The same shape comes back
// from the transaction-inquiry endpoint, so the reconcile path can treat
// webhook delivery and backfill lookup identically.
type Callback struct {
	TransactionID   int64
	GatewayOrderID  int64
	MerchantOrderID string
	Success         bool
	Pending         bool
	AmountCents     int64
	Currency        string
	CreatedAt       string

	ErrorOccured         bool
	HasParentTransaction bool
	IntegrationID        int64
	Is3DSecure           bool
	IsAuth               bool
	IsCapture            bool
	IsRefunded           bool
	IsStandalonePayment  bool
	IsVoided             bool
	Owner                int64
	SourcePan            string
	SourceSubType        string
	SourceType           string

	Raw string
}

// ErrTransactionNotFound is returned by InquireTransaction when the gateway
// has no transaction for the merchant order reference.
var ErrTransactionNotFound = errors.New("gateway: transaction not found")

// Client is the payment gateway boundary. Implementations must not retry on
// the caller's behalf; retry policy belongs to the reconciliation engine.
type Client interface {
	// CreateCheckout authenticates, registers an order and returns the
	// hosted-checkout redirect target for it.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	// ParseCallback decodes a raw webhook body.
	ParseCallback(raw []byte) (*Callback, error)
	// VerifySignature checks the gateway HMAC over the callback fields.
	// Must pass before any state mutation.
	VerifySignature(cb *Callback, provided string) bool
	// InquireTransaction asks the gateway for the transaction belonging to a
	// merchant order reference (backfill path).
	InquireTransaction(ctx context.Context, merchantOrderRef string) (*Callback, error)
}

// IsTimeout reports whether a gateway call failed on a deadline rather than
// being rejected, so the engine can map it to its own failure reason.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
