package api

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Encode converts a typed message into its wire form. Field names come from
// the json tags; integers travel as numbers and times as RFC 3339 strings.
func Encode(msg any) (*structpb.Struct, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

// Decode fills msg from a wire message. Unknown fields are ignored and
// missing ones keep their zero value.
func Decode(s *structpb.Struct, msg any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// Credentials is the request of both Register and Login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID     string `json:"user_id"`
	LimitBytes int64  `json:"limit_bytes"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPair is the response of Login and RefreshToken.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Object struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"size_human"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ListObjectsRequest struct {
	Search string `json:"search,omitempty"`
	Sort   string `json:"sort,omitempty"`
}

type ListObjectsResponse struct {
	Objects []Object `json:"objects"`
}

type DeleteObjectRequest struct {
	ID string `json:"id"`
}

type IssueLinkRequest struct {
	ObjectID   string `json:"object_id"`
	Duration   string `json:"duration,omitempty"`
	AccessCode string `json:"access_code,omitempty"`
}

type Link struct {
	Token     string    `json:"token"`
	ObjectID  string    `json:"object_id"`
	Kind      string    `json:"kind"`
	Active    bool      `json:"active"`
	ExpiresAt time.Time `json:"expires_at"`
	URL       string    `json:"url"`
}

type RevokeLinkRequest struct {
	Token string `json:"token"`
}

type ListLinksResponse struct {
	Links []Link `json:"links"`
}

type IngestRequest struct {
	URL string `json:"url"`
}

// IngestResponse carries a Notice when no new object was created.
type IngestResponse struct {
	Object Object `json:"object"`
	Notice string `json:"notice,omitempty"`
}

type Quota struct {
	LimitBytes     int64  `json:"limit_bytes"`
	UsedBytes      int64  `json:"used_bytes"`
	RemainingBytes int64  `json:"remaining_bytes"`
	LimitHuman     string `json:"limit_human"`
	UsedHuman      string `json:"used_human"`
}

type Plan struct {
	Code            string `json:"code"`
	StorageIncrease int64  `json:"storage_increase"`
	StorageHuman    string `json:"storage_human"`
	Amount          int64  `json:"amount"`
}

type ListPlansResponse struct {
	Plans []Plan `json:"plans"`
}

type OpenOrderRequest struct {
	Plan string `json:"plan"`
}

type SettleOrderRequest struct {
	OrderID string `json:"order_id"`
}

// Payment is a ledger entry. KeyID is only set in the OpenOrder response.
type Payment struct {
	OrderID         string    `json:"order_id"`
	PaymentID       string    `json:"payment_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	StorageIncrease int64     `json:"storage_increase"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	KeyID           string    `json:"key_id,omitempty"`
}

type ListPaymentsResponse struct {
	Payments []Payment `json:"payments"`
}
