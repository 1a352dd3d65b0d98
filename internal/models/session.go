package models

import "time"

// Session is the browser-local record of whether a user is logged in and
// as whom. It is authenticated only when both the token and the user
// snapshot are present.
type Session struct {
	IsAuthenticated bool        `json:"is_authenticated"`
	User            *UserRecord `json:"user"`
	Token           string      `json:"token"`
}

// Valid reports whether the session satisfies the authentication
// invariant: authenticated iff token and user are both present.
func (s *Session) Valid() bool {
	return s.IsAuthenticated && s.Token != "" && s.User != nil
}

// Anonymous returns an unauthenticated session. Malformed or missing
// session state always degrades to this value.
func Anonymous() Session {
	return Session{}
}

// ActivityRecord tracks the interaction and visibility timestamps used
// by the tab activity monitor's expiry decisions.
type ActivityRecord struct {
	LastActivity time.Time  `json:"last_activity"`
	TabClosedAt  *time.Time `json:"tab_closed_at,omitempty"`
}
