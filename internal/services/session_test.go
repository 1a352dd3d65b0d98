package services

import (
	"testing"
	"time"

	"eventu/internal/events"
	"eventu/internal/models"
	"eventu/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionService() (*SessionService, *storage.MemoryStore, *events.Bus) {
	store := storage.NewMemoryStore()
	bus := events.NewBus()
	return NewSessionService(store, bus, "client-1"), store, bus
}

func testUser() *models.UserRecord {
	return &models.UserRecord{
		ID:         "u1",
		Name:       "Ana Torres",
		Email:      "ana@example.com",
		Role:       models.RoleCustomer,
		IsVerified: true,
		CreatedAt:  time.Now(),
	}
}

func TestSessionService_LoadEmpty(t *testing.T) {
	svc, _, _ := newTestSessionService()

	session := svc.Load()
	assert.False(t, session.Valid())
	assert.Nil(t, session.User)
}

func TestSessionService_LoginThenLoad(t *testing.T) {
	svc, store, bus := newTestSessionService()

	var published []events.Event
	bus.Subscribe(events.AuthStateChanged, func(e events.Event) {
		published = append(published, e)
	})

	svc.Login(testUser(), "token-abc")

	session := svc.Load()
	require.True(t, session.Valid())
	assert.Equal(t, "token-abc", session.Token)
	assert.Equal(t, "u1", session.User.ID)

	role, ok := store.Get(storage.KeyUserRole)
	assert.True(t, ok)
	assert.Equal(t, "customer", role)

	_, ok = store.Get(storage.KeySessionStartTime)
	assert.True(t, ok)

	require.Len(t, published, 1)
	assert.True(t, published[0].Authenticated)
}

func TestSessionService_LoadMalformedUserFailsOpen(t *testing.T) {
	svc, store, _ := newTestSessionService()

	store.Set(storage.KeyAuthenticated, "true")
	store.Set(storage.KeyAuthToken, "token")
	store.Set(storage.KeyCurrentUser, "{not json")

	session := svc.Load()
	assert.False(t, session.Valid(), "malformed user record degrades to logged out")
}

func TestSessionService_LoadMissingTokenFailsOpen(t *testing.T) {
	svc, store, _ := newTestSessionService()

	store.Set(storage.KeyAuthenticated, "true")
	storage.WriteJSON(store, storage.KeyCurrentUser, testUser())

	loaded := svc.Load()
	assert.False(t, loaded.Valid())
}

func TestSessionService_LoginFlagsRecoveryWhenSnapshotPending(t *testing.T) {
	svc, store, _ := newTestSessionService()

	// No snapshot: no recovery flag
	svc.Login(testUser(), "t1")
	assert.False(t, svc.RecoveryNeeded())

	svc.Logout()
	store.Set(storage.KeyCartPersistence, `{"session_id":"s1"}`)

	svc.Login(testUser(), "t2")
	assert.True(t, svc.RecoveryNeeded())

	svc.ClearRecoveryFlag()
	assert.False(t, svc.RecoveryNeeded())
}

func TestSessionService_LogoutKeepsSnapshot(t *testing.T) {
	svc, store, _ := newTestSessionService()

	svc.Login(testUser(), "token")
	store.Set(storage.KeyCartPersistence, `{"session_id":"s1"}`)

	svc.Logout()

	loaded := svc.Load()
	assert.False(t, loaded.Valid())
	_, ok := store.Get(storage.KeyAuthToken)
	assert.False(t, ok)

	// The snapshot lifecycle is independent of the session's
	_, ok = store.Get(storage.KeyCartPersistence)
	assert.True(t, ok)
}

func TestSessionService_ConsumeJustLoggedInIsOneShot(t *testing.T) {
	svc, _, _ := newTestSessionService()

	assert.False(t, svc.ConsumeJustLoggedIn(), "no login yet")

	svc.Login(testUser(), "token")
	assert.True(t, svc.ConsumeJustLoggedIn(), "first consume after login")
	assert.False(t, svc.ConsumeJustLoggedIn(), "flag is consumed exactly once")
}

func TestSessionService_UpdateToken(t *testing.T) {
	svc, _, _ := newTestSessionService()
	svc.Login(testUser(), "old-token")

	svc.UpdateToken("new-token")

	session := svc.Load()
	require.True(t, session.Valid())
	assert.Equal(t, "new-token", session.Token)
	assert.Equal(t, "u1", session.User.ID, "other fields untouched")
}

func TestSessionService_TokenVerificationInterval(t *testing.T) {
	svc, store, _ := newTestSessionService()

	assert.True(t, svc.ShouldVerifyToken(10*time.Minute), "never verified")

	svc.MarkTokenVerified()
	assert.False(t, svc.ShouldVerifyToken(10*time.Minute))

	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	assert.True(t, svc.ShouldVerifyToken(10*time.Minute))

	store.Set(storage.KeyLastTokenVerification, "garbage")
	assert.True(t, svc.ShouldVerifyToken(10*time.Minute), "malformed timestamp forces verification")
}
