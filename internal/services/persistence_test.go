package services

import (
	"testing"
	"time"

	"eventu/internal/models"
	"eventu/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge() (*CartPersistenceBridge, *storage.MemoryStore, *storage.MemoryStore) {
	durable := storage.NewMemoryStore()
	backup := storage.NewMemoryStore()
	return NewCartPersistenceBridge(durable, backup, 24*time.Hour), durable, backup
}

func sampleCart() *models.Cart {
	return &models.Cart{
		ID:        "cart-1",
		SessionID: "session-1",
		Items: []models.CartItem{
			{ID: "i1", ProductID: "p1", TicketType: "general", Price: 1000, Quantity: 2},
			{ID: "i2", ProductID: "p2", TicketType: "vip", Price: 5000, Quantity: 1},
		},
	}
}

func TestBridge_SaveWritesBothCopies(t *testing.T) {
	bridge, durable, backup := newTestBridge()

	bridge.SaveCartBeforeLogin(sampleCart(), "session-1")

	_, ok := durable.Get(storage.KeyCartPersistence)
	assert.True(t, ok, "durable snapshot missing")
	_, ok = backup.Get(storage.KeyCartPersistenceBackup)
	assert.True(t, ok, "session-scoped backup missing")
}

func TestBridge_RoundTrip(t *testing.T) {
	bridge, _, _ := newTestBridge()
	original := sampleCart()

	bridge.SaveCartBeforeLogin(original, "session-1")

	snapshot := bridge.GetPersistedCart()
	require.NotNil(t, snapshot)
	assert.Equal(t, "session-1", snapshot.SessionID)
	require.Len(t, snapshot.CartData.Items, 2)

	// Item set survives ignoring identifiers
	for i, item := range snapshot.CartData.Items {
		assert.Equal(t, original.Items[i].ProductID, item.ProductID)
		assert.Equal(t, original.Items[i].Quantity, item.Quantity)
		assert.Equal(t, original.Items[i].Price, item.Price)
	}
}

func TestBridge_LazyExpiry(t *testing.T) {
	bridge, durable, backup := newTestBridge()
	bridge.SaveCartBeforeLogin(sampleCart(), "session-1")

	// 25 hours later the snapshot reads as absent and is deleted
	bridge.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	assert.Nil(t, bridge.GetPersistedCart())
	_, ok := durable.Get(storage.KeyCartPersistence)
	assert.False(t, ok, "expired snapshot must be deleted on read")
	_, ok = backup.Get(storage.KeyCartPersistenceBackup)
	assert.False(t, ok)
}

func TestBridge_MalformedSnapshotIsAbsent(t *testing.T) {
	bridge, durable, _ := newTestBridge()
	durable.Set(storage.KeyCartPersistence, "{broken")

	assert.Nil(t, bridge.GetPersistedCart(), "parse failures count as no snapshot")
}

func TestBridge_BackupFallback(t *testing.T) {
	bridge, durable, _ := newTestBridge()
	bridge.SaveCartBeforeLogin(sampleCart(), "session-1")

	// Losing the durable copy falls back to the session-scoped backup
	durable.Delete(storage.KeyCartPersistence)

	snapshot := bridge.GetPersistedCart()
	require.NotNil(t, snapshot)
	assert.Equal(t, "session-1", snapshot.SessionID)
}

func TestBridge_ClearIsIdempotent(t *testing.T) {
	bridge, durable, _ := newTestBridge()
	bridge.SaveCartBeforeLogin(sampleCart(), "session-1")

	bridge.ClearPersistedCart()
	_, ok := durable.Get(storage.KeyCartPersistence)
	assert.False(t, ok)

	// Second clear is a no-op, not an error
	bridge.ClearPersistedCart()
}

func TestBridge_RestoreCart(t *testing.T) {
	bridge, _, _ := newTestBridge()
	carts := newTestCartService()
	original := sampleCart()

	bridge.SaveCartBeforeLogin(original, "session-1")

	sessionID, found, err := bridge.RestoreCart(carts)
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotEmpty(t, sessionID)
	assert.NotEqual(t, "session-1", sessionID, "restore generates a fresh session identifier")

	restored, ok := carts.GetCart(sessionID)
	require.True(t, ok)
	require.Len(t, restored.Items, 2)
	assert.Equal(t, "p1", restored.Items[0].ProductID)
	assert.Equal(t, 2, restored.Items[0].Quantity)
	assertTotals(t, restored)

	// Restore does not consume: the snapshot is still there
	assert.NotNil(t, bridge.GetPersistedCart())
}

func TestBridge_RestoreWithoutSnapshot(t *testing.T) {
	bridge, _, _ := newTestBridge()
	carts := newTestCartService()

	_, found, err := bridge.RestoreCart(carts)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBridge_RestoreTwiceDoesNotDuplicate(t *testing.T) {
	bridge, _, _ := newTestBridge()
	carts := newTestCartService()
	bridge.SaveCartBeforeLogin(sampleCart(), "session-1")

	firstID, _, err := bridge.RestoreCart(carts)
	require.NoError(t, err)
	secondID, _, err := bridge.RestoreCart(carts)
	require.NoError(t, err)

	// Each restore targets its own fresh cart with a wholesale item
	// list; neither accumulates duplicates.
	first, _ := carts.GetCart(firstID)
	second, _ := carts.GetCart(secondID)
	assert.Len(t, first.Items, 2)
	assert.Len(t, second.Items, 2)
}
