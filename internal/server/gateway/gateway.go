// Package gateway talks to the payment provider. Orders are created
// server-side; the provider later reports a payment that is checked with an
// HMAC-SHA256 signature over "order_id|payment_id".
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Gateway is the payment capability used by the payment ledger.
type Gateway interface {
	// CreateOrder opens an order for amount (minor units) and returns its id.
	CreateOrder(ctx context.Context, amount int64, currency string) (string, error)
	// VerifySignature reports whether signature authenticates the payment.
	VerifySignature(orderID, paymentID, signature string) bool
	// KeyID is the public key the checkout widget needs.
	KeyID() string
}

// Sign computes the provider signature for a payment.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret, orderID, paymentID, signature string) bool {
	want := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(want), []byte(signature))
}
