package models

import "time"

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// PaymentTransaction records one quota purchase attempt. Amount is in the
// currency's minor units.
type PaymentTransaction struct {
	OrderID         string
	PaymentID       string
	OwnerID         string
	Amount          int64
	Currency        string
	StorageIncrease int64
	Status          PaymentStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
