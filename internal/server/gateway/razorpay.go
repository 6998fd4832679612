package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const razorpayBaseURL = "https://api.razorpay.com"

// Razorpay creates orders through the provider's REST API.
type Razorpay struct {
	client  *http.Client
	baseURL string
	keyID   string
	secret  string
}

func NewRazorpay(client *http.Client, keyID, secret string) *Razorpay {
	if client == nil {
		client = http.DefaultClient
	}
	return &Razorpay{client: client, baseURL: razorpayBaseURL, keyID: keyID, secret: secret}
}

type createOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PaymentCapture int    `json:"payment_capture"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency string) (string, error) {
	body, err := json.Marshal(createOrderRequest{Amount: amount, Currency: currency, PaymentCapture: 1})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(r.baseURL, "/")+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(r.keyID, r.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("razorpay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("razorpay: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("razorpay: decode: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("razorpay: empty order id")
	}
	return out.ID, nil
}

func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	return verify(r.secret, orderID, paymentID, signature)
}

func (r *Razorpay) KeyID() string { return r.keyID }
