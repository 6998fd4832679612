// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account holder. Salt and Verifier are the argon2id inputs
// and output for the password.
type User struct {
	ID        string
	UserName  string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}
