package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

// PaymobClient talks to the Paymob Accept API: auth token, order registration,
// payment key, hosted iframe. Tokens are short-lived and re-acquired per
// operation, never cached across calls.
type PaymobClient struct {
	BaseURL       string
	APIKey        string
	IntegrationID int
	IframeID      int
	HMACSecret    string
	client        *http.Client
}

func NewPaymobClient(baseURL, apiKey string, integrationID, iframeID int, hmacSecret string, timeout time.Duration) *PaymobClient {
	if baseURL == "" {
		baseURL = "https://accept.paymob.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PaymobClient{
		BaseURL:       baseURL,
		APIKey:        apiKey,
		IntegrationID: integrationID,
		IframeID:      iframeID,
		HMACSecret:    hmacSecret,
		client:        &http.Client{Timeout: timeout},
	}
}

type paymobAuthReq struct {
	APIKey string `json:"api_key"`
}

type paymobAuthResp struct {
	Token string `json:"token"`
}

// authenticate obtains a fresh auth token.
func (p *PaymobClient) authenticate(ctx context.Context) (string, error) {
	var out paymobAuthResp
	if err := p.post(ctx, "/api/auth/tokens", paymobAuthReq{APIKey: p.APIKey}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("paymob: auth returned empty token")
	}
	return out.Token, nil
}

type paymobOrderItem struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Quantity    int    `json:"quantity"`
}

type paymobOrderReq struct {
	AuthToken       string            `json:"auth_token"`
	DeliveryNeeded  bool              `json:"delivery_needed"`
	AmountCents     int64             `json:"amount_cents"`
	Currency        string            `json:"currency"`
	MerchantOrderID string            `json:"merchant_order_id"`
	Items           []paymobOrderItem `json:"items"`
}

type paymobOrderResp struct {
	ID int64 `json:"id"`
}

type paymobBillingData struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Street      string `json:"street"`
	Building    string `json:"building"`
	Floor       string `json:"floor"`
	Apartment   string `json:"apartment"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

type paymobKeyReq struct {
	AuthToken     string            `json:"auth_token"`
	AmountCents   int64             `json:"amount_cents"`
	Expiration    int               `json:"expiration"`
	OrderID       int64             `json:"order_id"`
	BillingData   paymobBillingData `json:"billing_data"`
	Currency      string            `json:"currency"`
	IntegrationID int               `json:"integration_id"`
}

type paymobKeyResp struct {
	Token string `json:"token"`
}

// CreateCheckout registers the order and mints a payment key, returning the
// iframe URL the buyer is redirected to.
func (p *PaymobClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	token, err := p.authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("paymob auth: %w", err)
	}
	orderReq := paymobOrderReq{
		AuthToken:       token,
		DeliveryNeeded:  false,
		AmountCents:     req.AmountCents,
		Currency:        req.Currency,
		MerchantOrderID: req.MerchantOrderRef,
		Items: []paymobOrderItem{
			{Name: req.ItemName, AmountCents: req.AmountCents, Quantity: 1},
		},
	}
	log.Printf("[PAYMOB] POST /api/ecommerce/orders merchant_order_id=%s amount_cents=%d", req.MerchantOrderRef, req.AmountCents)
	var orderOut paymobOrderResp
	orderRaw, err := p.postRaw(ctx, "/api/ecommerce/orders", orderReq, &orderOut)
	if err != nil {
		return nil, fmt.Errorf("paymob order: %w", err)
	}
	if orderOut.ID == 0 {
		return nil, fmt.Errorf("paymob order: missing order id in response")
	}
	keyReq := paymobKeyReq{
		AuthToken:   token,
		AmountCents: req.AmountCents,
		Expiration:  3600,
		OrderID:     orderOut.ID,
		BillingData: paymobBillingData{
			FirstName:   orEmpty(req.FirstName, "NA"),
			LastName:    orEmpty(req.LastName, "NA"),
			Email:       orEmpty(req.Email, "NA"),
			PhoneNumber: orEmpty(req.Phone, "NA"),
			Street:      "NA",
			Building:    "NA",
			Floor:       "NA",
			Apartment:   "NA",
			City:        "NA",
			Country:     "NA",
		},
		Currency:      req.Currency,
		IntegrationID: p.IntegrationID,
	}
	var keyOut paymobKeyResp
	if err := p.post(ctx, "/api/acceptance/payment_keys", keyReq, &keyOut); err != nil {
		return nil, fmt.Errorf("paymob payment key: %w", err)
	}
	if keyOut.Token == "" {
		return nil, fmt.Errorf("paymob payment key: empty token")
	}
	return &Checkout{
		GatewayOrderID: strconv.FormatInt(orderOut.ID, 10),
		PaymentKey:     keyOut.Token,
		RedirectURL:    fmt.Sprintf("%s/api/acceptance/iframes/%d?payment_token=%s", p.BaseURL, p.IframeID, keyOut.Token),
		Raw:            orderRaw,
	}, nil
}

// paymobTxn mirrors the transaction object Paymob sends in webhooks and
// returns from the inquiry endpoint.
type paymobTxn struct {
	ID                   int64           `json:"id"`
	Pending              bool            `json:"pending"`
	AmountCents          int64           `json:"amount_cents"`
	Success              bool            `json:"success"`
	Currency             string          `json:"currency"`
	CreatedAt            string          `json:"created_at"`
	IsAuth               bool            `json:"is_auth"`
	IsCapture            bool            `json:"is_capture"`
	IsStandalone         bool            `json:"is_standalone_payment"`
	IsVoided             bool            `json:"is_voided"`
	IsRefunded           bool            `json:"is_refunded"`
	Is3DSecure           bool            `json:"is_3d_secure"`
	IntegrationID        int64           `json:"integration_id"`
	HasParentTransaction bool            `json:"has_parent_transaction"`
	ErrorOccured         bool            `json:"error_occured"`
	Owner                int64           `json:"owner"`
	Order                paymobTxnOrder  `json:"order"`
	SourceData           paymobTxnSource `json:"source_data"`
}

type paymobTxnOrder struct {
	ID              int64  `json:"id"`
	MerchantOrderID string `json:"merchant_order_id"`
}

type paymobTxnSource struct {
	Pan     string `json:"pan"`
	SubType string `json:"sub_type"`
	Type    string `json:"type"`
}

type paymobWebhook struct {
	Type string    `json:"type"`
	Obj  paymobTxn `json:"obj"`
}

// ParseCallback decodes a raw webhook body into a Callback.
func (p *PaymobClient) ParseCallback(raw []byte) (*Callback, error) {
	var wh paymobWebhook
	if err := json.Unmarshal(raw, &wh); err != nil {
		return nil, fmt.Errorf("paymob callback: %w", err)
	}
	if wh.Obj.ID == 0 {
		return nil, fmt.Errorf("paymob callback: missing transaction id")
	}
	return txnToCallback(&wh.Obj, string(raw)), nil
}

func txnToCallback(t *paymobTxn, raw string) *Callback {
	return &Callback{
		TransactionID:        t.ID,
		GatewayOrderID:       t.Order.ID,
		MerchantOrderID:      t.Order.MerchantOrderID,
		Success:              t.Success,
		Pending:              t.Pending,
		AmountCents:          t.AmountCents,
		Currency:             t.Currency,
		CreatedAt:            t.CreatedAt,
		ErrorOccured:         t.ErrorOccured,
		HasParentTransaction: t.HasParentTransaction,
		IntegrationID:        t.IntegrationID,
		Is3DSecure:           t.Is3DSecure,
		IsAuth:               t.IsAuth,
		IsCapture:            t.IsCapture,
		IsRefunded:           t.IsRefunded,
		IsStandalonePayment:  t.IsStandalone,
		IsVoided:             t.IsVoided,
		Owner:                t.Owner,
		SourcePan:            t.SourceData.Pan,
		SourceSubType:        t.SourceData.SubType,
		SourceType:           t.SourceData.Type,
		Raw:                  raw,
	}
}

// hmacBase concatenates the callback fields in Paymob's fixed lexicographic
// key order. Booleans render as "true"/"false".
func hmacBase(cb *Callback) string {
	var b bytes.Buffer
	b.WriteString(strconv.FormatInt(cb.AmountCents, 10))
	b.WriteString(cb.CreatedAt)
	b.WriteString(cb.Currency)
	b.WriteString(strconv.FormatBool(cb.ErrorOccured))
	b.WriteString(strconv.FormatBool(cb.HasParentTransaction))
	b.WriteString(strconv.FormatInt(cb.TransactionID, 10))
	b.WriteString(strconv.FormatInt(cb.IntegrationID, 10))
	b.WriteString(strconv.FormatBool(cb.Is3DSecure))
	b.WriteString(strconv.FormatBool(cb.IsAuth))
	b.WriteString(strconv.FormatBool(cb.IsCapture))
	b.WriteString(strconv.FormatBool(cb.IsRefunded))
	b.WriteString(strconv.FormatBool(cb.IsStandalonePayment))
	b.WriteString(strconv.FormatBool(cb.IsVoided))
	b.WriteString(strconv.FormatInt(cb.GatewayOrderID, 10))
	b.WriteString(strconv.FormatInt(cb.Owner, 10))
	b.WriteString(strconv.FormatBool(cb.Pending))
	b.WriteString(cb.SourcePan)
	b.WriteString(cb.SourceSubType)
	b.WriteString(cb.SourceType)
	b.WriteString(strconv.FormatBool(cb.Success))
	return b.String()
}

// VerifySignature checks the hex HMAC-SHA512 Paymob appends as ?hmac=.
func (p *PaymobClient) VerifySignature(cb *Callback, provided string) bool {
	if p.HMACSecret == "" || provided == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.HMACSecret))
	mac.Write([]byte(hmacBase(cb)))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(provided), []byte(expected))
}

type paymobInquiryReq struct {
	AuthToken       string `json:"auth_token"`
	MerchantOrderID string `json:"merchant_order_id"`
}

// InquireTransaction looks up the transaction for a merchant order reference.
func (p *PaymobClient) InquireTransaction(ctx context.Context, merchantOrderRef string) (*Callback, error) {
	token, err := p.authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("paymob auth: %w", err)
	}
	body, _ := json.Marshal(paymobInquiryReq{AuthToken: token, MerchantOrderID: merchantOrderRef})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/ecommerce/orders/transaction_inquiry", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paymob inquiry: %d %s", resp.StatusCode, string(respBody))
	}
	var txn paymobTxn
	if err := json.Unmarshal(respBody, &txn); err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, ErrTransactionNotFound
	}
	return txnToCallback(&txn, string(respBody)), nil
}

func (p *PaymobClient) post(ctx context.Context, path string, in, out interface{}) error {
	_, err := p.postRaw(ctx, path, in, out)
	return err
}

func (p *PaymobClient) postRaw(ctx context.Context, path string, in, out interface{}) (string, error) {
	body, _ := json.Marshal(in)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("paymob %s: %d %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return "", err
		}
	}
	return string(respBody), nil
}

func orEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
