package gateway

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/linkvault/internal/common"
)

// Sandbox is a local stand-in for development. It issues order ids itself
// and can settle them, signing with the same scheme as the real provider.
type Sandbox struct {
	keyID  string
	secret string
}

func NewSandbox(keyID, secret string) *Sandbox {
	return &Sandbox{keyID: keyID, secret: secret}
}

func (s *Sandbox) CreateOrder(ctx context.Context, amount int64, currency string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("amount must be positive: %w", common.ErrorValidation)
	}
	id, err := common.MakeRandHexString(7)
	if err != nil {
		return "", err
	}
	return "order_" + id, nil
}

func (s *Sandbox) VerifySignature(orderID, paymentID, signature string) bool {
	return verify(s.secret, orderID, paymentID, signature)
}

func (s *Sandbox) KeyID() string { return s.keyID }

// Settle fabricates a captured payment for orderID and returns the payment
// id and signature a provider callback would carry.
func (s *Sandbox) Settle(orderID string) (paymentID, signature string, err error) {
	id, err := common.MakeRandHexString(7)
	if err != nil {
		return "", "", err
	}
	paymentID = "pay_" + id
	return paymentID, Sign(s.secret, orderID, paymentID), nil
}
