package models

// QuotaAccount is per-owner capacity state. UsedBytes is derived from the
// owner's live objects and never stored.
type QuotaAccount struct {
	OwnerID    string
	LimitBytes int64
	UsedBytes  int64
}

// Remaining returns how many bytes the owner may still store.
func (q QuotaAccount) Remaining() int64 {
	if r := q.LimitBytes - q.UsedBytes; r > 0 {
		return r
	}
	return 0
}
