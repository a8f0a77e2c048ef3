package models

import "time"

// SessionEntry is one cached authenticated session, persisted as a JSON
// file per (provider, account) by the session cache. Owned exclusively by
// the cache; consumers treat it as read-only.
type SessionEntry struct {
	AccountName string            `json:"account_name"`
	Provider    string            `json:"provider"`
	Cookies     map[string]string `json:"cookies"`
	UserID      string            `json:"user_id,omitempty"`
	Username    string            `json:"username,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at the given time.
func (e *SessionEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
