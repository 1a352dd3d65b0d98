package services

import (
	"log"
	"strconv"
	"time"

	"eventu/internal/events"
	"eventu/internal/models"
	"eventu/internal/storage"
)

// SessionService owns the persisted session key set for one client
// scope. Loading never fails: missing or malformed keys degrade to the
// unauthenticated session.
type SessionService struct {
	store storage.Store
	bus   *events.Bus
	scope string
	now   func() time.Time
}

// NewSessionService creates a session service over a client scope
func NewSessionService(store storage.Store, bus *events.Bus, scope string) *SessionService {
	return &SessionService{
		store: store,
		bus:   bus,
		scope: scope,
		now:   time.Now,
	}
}

// Load reads the persisted session. Any missing or malformed key yields
// an unauthenticated session; the caller never sees an error.
func (s *SessionService) Load() models.Session {
	flag, ok := s.store.Get(storage.KeyAuthenticated)
	if !ok || flag != "true" {
		return models.Anonymous()
	}

	token, ok := s.store.Get(storage.KeyAuthToken)
	if !ok || token == "" {
		return models.Anonymous()
	}

	var user models.UserRecord
	if !storage.ReadJSON(s.store, storage.KeyCurrentUser, &user) {
		return models.Anonymous()
	}
	if err := user.Validate(); err != nil {
		log.Printf("session: stored user record invalid, treating as logged out: %v", err)
		return models.Anonymous()
	}

	return models.Session{
		IsAuthenticated: true,
		User:            &user,
		Token:           token,
	}
}

// Login writes the full session key set. It sets the one-shot
// just-logged-in flag, and when a cart persistence snapshot is pending
// it also flags cart recovery. Synchronous storage writes only, no
// network call.
func (s *SessionService) Login(user *models.UserRecord, token string) {
	now := s.now()

	s.store.Set(storage.KeyAuthenticated, "true")
	s.store.Set(storage.KeyAuthToken, token)
	storage.WriteJSON(s.store, storage.KeyCurrentUser, user)
	s.store.Set(storage.KeyUserRole, string(user.Role))
	s.store.Set(storage.KeySessionStartTime, strconv.FormatInt(now.Unix(), 10))
	s.store.Set(storage.KeyLastActivity, strconv.FormatInt(now.Unix(), 10))
	s.store.Set(storage.KeyJustLoggedIn, "true")

	if _, ok := s.store.Get(storage.KeyCartPersistence); ok {
		s.store.Set(storage.KeyCartRecoveryNeeded, "true")
	}

	s.bus.Publish(events.Event{
		Type:          events.AuthStateChanged,
		ClientID:      s.scope,
		Authenticated: true,
	})
}

// Logout deletes all session keys. The cart persistence snapshot has an
// independent lifecycle and is left untouched.
func (s *SessionService) Logout() {
	for _, key := range []string{
		storage.KeyAuthenticated,
		storage.KeyAuthToken,
		storage.KeyCurrentUser,
		storage.KeyUserRole,
		storage.KeyLastTokenVerification,
		storage.KeyJustLoggedIn,
		storage.KeyLastActivity,
		storage.KeyTabClosedTime,
		storage.KeySessionStartTime,
	} {
		s.store.Delete(key)
	}

	s.bus.Publish(events.Event{
		Type:          events.AuthStateChanged,
		ClientID:      s.scope,
		Authenticated: false,
	})
}

// UpdateToken replaces the bearer token in place without touching the
// rest of the session
func (s *SessionService) UpdateToken(token string) {
	s.store.Set(storage.KeyAuthToken, token)
}

// ConsumeJustLoggedIn reads and clears the one-shot just-logged-in flag.
// It reports true at most once per login.
func (s *SessionService) ConsumeJustLoggedIn() bool {
	flag, ok := s.store.Get(storage.KeyJustLoggedIn)
	if !ok || flag != "true" {
		return false
	}

	s.store.Delete(storage.KeyJustLoggedIn)
	return true
}

// RecoveryNeeded reports whether a cart recovery is pending for this
// client
func (s *SessionService) RecoveryNeeded() bool {
	flag, ok := s.store.Get(storage.KeyCartRecoveryNeeded)
	return ok && flag == "true"
}

// ClearRecoveryFlag removes the cart recovery marker
func (s *SessionService) ClearRecoveryFlag() {
	s.store.Delete(storage.KeyCartRecoveryNeeded)
}

// ShouldVerifyToken reports whether the token's backend verification is
// older than interval
func (s *SessionService) ShouldVerifyToken(interval time.Duration) bool {
	raw, ok := s.store.Get(storage.KeyLastTokenVerification)
	if !ok {
		return true
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("session: malformed verification timestamp %q, forcing verification", raw)
		return true
	}

	return s.now().Sub(time.Unix(unix, 0)) >= interval
}

// MarkTokenVerified records that the token was just verified remotely
func (s *SessionService) MarkTokenVerified() {
	s.store.Set(storage.KeyLastTokenVerification, strconv.FormatInt(s.now().Unix(), 10))
}

// Role returns the persisted role of the current user, if any
func (s *SessionService) Role() (models.UserRole, bool) {
	raw, ok := s.store.Get(storage.KeyUserRole)
	if !ok {
		return "", false
	}
	return models.UserRole(raw), true
}
