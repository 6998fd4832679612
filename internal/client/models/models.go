// Package models holds the client-side views of server resources.
package models

import "time"

type Object struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Size      int64      `json:"size"`
	SizeHuman string     `json:"size_human"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Link struct {
	Token     string
	ObjectID  string
	Kind      string
	Active    bool
	ExpiresAt time.Time
	URL       string
}

type Quota struct {
	LimitBytes     int64
	UsedBytes      int64
	RemainingBytes int64
	LimitHuman     string
	UsedHuman      string
}

type Plan struct {
	Code            string
	StorageIncrease int64
	StorageHuman    string
	Amount          int64
}

// Payment is a ledger entry. KeyID is set only on freshly opened orders.
type Payment struct {
	OrderID         string
	PaymentID       string
	Amount          int64
	Currency        string
	StorageIncrease int64
	Status          string
	CreatedAt       time.Time
	KeyID           string
}
