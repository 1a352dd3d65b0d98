package models

import "time"

// CartPersistenceSnapshot is a durable, time-boxed copy of cart contents
// taken before an identity-requiring redirect. It is consumed (read once,
// then deleted) upon successful restoration and expires 24 hours after
// creation regardless of consumption.
type CartPersistenceSnapshot struct {
	SessionID string    `json:"session_id"`
	CartData  Cart      `json:"cart_data"`
	Timestamp time.Time `json:"timestamp"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the snapshot is past its expiry
func (s *CartPersistenceSnapshot) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
