package services

import (
	"fmt"
	"time"

	"eventu/internal/models"
	"eventu/internal/storage"

	"github.com/google/uuid"
)

// CartReplacer is the slice of the cart service that restoration needs
type CartReplacer interface {
	CreateCart(userID, sessionID string) *models.Cart
	ReplaceItems(sessionID string, items []models.CartItem) error
}

// CartPersistenceBridge snapshots a cart to durable storage before an
// unauthenticated user is redirected to login, and restores it after.
// Restoring and consuming are separate steps: RestoreCart never clears
// the snapshot itself.
type CartPersistenceBridge struct {
	durable storage.Store
	backup  storage.Store
	ttl     time.Duration
	now     func() time.Time
}

// NewCartPersistenceBridge creates a bridge over a client's durable
// store and its session-scoped backup store
func NewCartPersistenceBridge(durable, backup storage.Store, ttl time.Duration) *CartPersistenceBridge {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &CartPersistenceBridge{
		durable: durable,
		backup:  backup,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SaveCartBeforeLogin writes a snapshot with a 24 hour expiry to durable
// storage, plus a backup copy to session-scoped storage. The backup
// survives navigation but not a new browser session.
func (b *CartPersistenceBridge) SaveCartBeforeLogin(cart *models.Cart, sessionID string) {
	now := b.now()
	snapshot := models.CartPersistenceSnapshot{
		SessionID: sessionID,
		CartData:  *cart,
		Timestamp: now,
		ExpiresAt: now.Add(b.ttl),
	}

	storage.WriteJSON(b.durable, storage.KeyCartPersistence, &snapshot)
	storage.WriteJSON(b.backup, storage.KeyCartPersistenceBackup, &snapshot)
}

// GetPersistedCart returns the pending snapshot, or nil when none
// exists. Expiry is lazy: an expired record is deleted on read, there is
// no background sweep. Read or parse failures count as "no snapshot".
func (b *CartPersistenceBridge) GetPersistedCart() *models.CartPersistenceSnapshot {
	var snapshot models.CartPersistenceSnapshot

	if !storage.ReadJSON(b.durable, storage.KeyCartPersistence, &snapshot) {
		// Durable copy gone or unreadable; fall back to the
		// session-scoped backup.
		if !storage.ReadJSON(b.backup, storage.KeyCartPersistenceBackup, &snapshot) {
			return nil
		}
	}

	if snapshot.Expired(b.now()) {
		b.ClearPersistedCart()
		return nil
	}

	return &snapshot
}

// ClearPersistedCart deletes the snapshot and its backup
// unconditionally. Calling it again is a no-op.
func (b *CartPersistenceBridge) ClearPersistedCart() {
	b.durable.Delete(storage.KeyCartPersistence)
	b.backup.Delete(storage.KeyCartPersistenceBackup)
}

// RestoreCart rebuilds the snapshotted cart under a freshly generated
// session identifier. The item list is replaced wholesale, so calling
// restore twice cannot duplicate items. It reports whether a snapshot
// existed; the caller is responsible for consuming the snapshot via
// ClearPersistedCart on success.
func (b *CartPersistenceBridge) RestoreCart(carts CartReplacer) (sessionID string, found bool, err error) {
	snapshot := b.GetPersistedCart()
	if snapshot == nil {
		return "", false, nil
	}

	sessionID = uuid.New().String()
	carts.CreateCart(snapshot.CartData.UserID, sessionID)

	if err := carts.ReplaceItems(sessionID, snapshot.CartData.Items); err != nil {
		return "", true, fmt.Errorf("failed to restore cart items: %w", err)
	}

	return sessionID, true, nil
}
