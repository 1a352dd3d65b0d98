// Package storage provides the scoped key-value stores that back session
// and cart bookkeeping. Failed reads and malformed values are logged and
// treated as absent state; callers never see a storage error.
package storage

import (
	"encoding/json"
	"log"
)

// Storage keys shared by the session, cart persistence and activity
// services. Scoping keeps one writer per key in the common case.
const (
	KeyAuthenticated         = "eventu_authenticated"
	KeyAuthToken             = "auth_token"
	KeyCurrentUser           = "current_user"
	KeyUserRole              = "userRole"
	KeyLastTokenVerification = "last_token_verification"
	KeyJustLoggedIn          = "just_logged_in"
	KeyCartRecoveryNeeded    = "cart_recovery_needed"
	KeyCartPersistence       = "eventu_cart_persistence"
	KeyCartPersistenceBackup = "eventu_cart_persistence_backup"
	KeyLastActivity          = "last_activity"
	KeyTabClosedTime         = "tab_closed_time"
	KeySessionStartTime      = "session_start_time"
)

// Store is a flat string key-value store. Implementations swallow their
// own failures: Get reports absence instead of returning errors.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	Keys() []string
}

// Scoper hands out stores bound to a client identifier. Different
// identifiers never observe each other's keys.
type Scoper interface {
	Scope(id string) Store
}

// WatchFunc receives the new value after a key mutation. ok is false
// when the mutation was a delete.
type WatchFunc func(value string, ok bool)

// Watcher is implemented by stores that broadcast key mutations so
// concurrent holders of the same scope converge on the last write.
type Watcher interface {
	Watch(key string, fn WatchFunc) (cancel func())
}

// ReadJSON unmarshals the value under key into v. A missing key or
// malformed value reports false; the malformed record is deleted so the
// next read starts clean.
func ReadJSON(s Store, key string, v any) bool {
	raw, ok := s.Get(key)
	if !ok {
		return false
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		log.Printf("storage: malformed value under %q, discarding: %v", key, err)
		s.Delete(key)
		return false
	}

	return true
}

// WriteJSON marshals v under key. Marshal failures are logged and the
// previous value is left in place.
func WriteJSON(s Store, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("storage: failed to marshal value for %q: %v", key, err)
		return
	}
	s.Set(key, string(raw))
}
