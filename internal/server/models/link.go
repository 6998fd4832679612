package models

import "time"

type LinkKind string

const (
	// LinkPublic grants access to anyone holding the URL.
	LinkPublic LinkKind = "public"
	// LinkProtected additionally requires an access code.
	LinkProtected LinkKind = "protected"
)

// AccessLink is a time-boxed capability token for one StoredObject.
type AccessLink struct {
	ID        string
	Token     string
	ObjectID  string
	Kind      LinkKind
	CodeSalt  []byte
	CodeHash  []byte
	ExpiresAt time.Time
	Active    bool
	CreatedAt time.Time
}

// Usable reports whether the link grants access at now.
func (l *AccessLink) Usable(now time.Time) bool {
	return l.Active && !now.After(l.ExpiresAt)
}
