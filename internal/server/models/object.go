package models

import "time"

// DefaultObjectLifetime is added to CreatedAt to get StoredObject.ExpiresAt.
// It is informational; only links enforce deadlines.
const DefaultObjectLifetime = 24 * time.Hour

// StoredObject describes one piece of retained content. The bytes live in
// blob storage under StorageKey.
type StoredObject struct {
	ID string
	// OwnerID is nullable in storage; objects created by the service always
	// carry one.
	OwnerID    *string
	StorageKey string
	Name       string
	Size       int64
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// OwnedBy reports whether the object belongs to ownerID.
func (o *StoredObject) OwnedBy(ownerID string) bool {
	return o.OwnerID != nil && *o.OwnerID == ownerID
}
