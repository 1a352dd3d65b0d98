package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"eventu/internal/events"
	"eventu/internal/middleware"
	"eventu/internal/models"
	"eventu/internal/services"
)

// Cart recovery outcomes reported by the confirmation endpoint
const (
	RecoveryRestored = "restored"
	RecoveryNoCart   = "no_cart"
	RecoveryError    = "error"
)

// AuthHandler handles login, logout and the post-login cart recovery
// confirmation
type AuthHandler struct {
	backend     services.BackendClient
	carts       *services.CartService
	bus         *events.Bus
	snapshotTTL time.Duration
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(backend services.BackendClient, carts *services.CartService, bus *events.Bus, snapshotTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		backend:     backend,
		carts:       carts,
		bus:         bus,
		snapshotTTL: snapshotTTL,
	}
}

// Login forwards credentials to the backend and, on success, writes the
// session key set. A pending cart snapshot flags recovery; the next
// authenticated render is redirected to the confirmation page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}

	result, err := h.backend.Login(req.Email, req.Password)
	if err != nil {
		log.Printf("auth: login failed for %s: %v", req.Email, err)
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	cc := middleware.GetClientContext(r.Context())
	if cc == nil {
		respondError(w, http.StatusInternalServerError, "client scope missing")
		return
	}

	sessionSvc := services.NewSessionService(cc.Durable, h.bus, cc.ClientID)
	sessionSvc.Login(&result.User, result.Token)

	redirect := r.URL.Query().Get("redirect")
	if redirect == "" || !strings.HasPrefix(redirect, "/") {
		redirect = "/"
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user":     result.User,
		"redirect": redirect,
	})
}

// Logout deletes the session keys. The cart persistence snapshot is
// deliberately left in place; its lifecycle is independent of the
// session's.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cc := middleware.GetClientContext(r.Context())
	if cc == nil {
		respondError(w, http.StatusInternalServerError, "client scope missing")
		return
	}

	sessionSvc := services.NewSessionService(cc.Durable, h.bus, cc.ClientID)
	sessionSvc.Logout()

	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Confirm is the post-login confirmation page endpoint. When cart
// recovery is flagged it restores the snapshot into a fresh cart; on
// success both the snapshot and the flag are cleared. A failed restore
// reports an error state and leaves the cart empty so the user can
// re-shop; a missing snapshot reports no_cart silently.
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	cc := middleware.GetClientContext(r.Context())
	if cc == nil {
		respondError(w, http.StatusInternalServerError, "client scope missing")
		return
	}

	sessionSvc := services.NewSessionService(cc.Durable, h.bus, cc.ClientID)
	bridge := services.NewCartPersistenceBridge(cc.Durable, cc.Scratch, h.snapshotTTL)

	if !sessionSvc.RecoveryNeeded() {
		respondJSON(w, http.StatusOK, map[string]any{"recovery": RecoveryNoCart})
		return
	}

	sessionID, found, err := bridge.RestoreCart(h.carts)
	if err != nil {
		log.Printf("auth: cart restore failed for client %s: %v", cc.ClientID, err)
		sessionSvc.ClearRecoveryFlag()
		respondJSON(w, http.StatusOK, map[string]any{
			"recovery": RecoveryError,
			"message":  "could not restore cart",
		})
		return
	}

	if !found {
		sessionSvc.ClearRecoveryFlag()
		respondJSON(w, http.StatusOK, map[string]any{"recovery": RecoveryNoCart})
		return
	}

	// Restore succeeded: consume the snapshot and adopt the new cart.
	bridge.ClearPersistedCart()
	sessionSvc.ClearRecoveryFlag()
	cc.SetCartSessionID(w, r, sessionID)

	cart, _ := h.carts.GetCart(sessionID)
	respondJSON(w, http.StatusOK, map[string]any{
		"recovery": RecoveryRestored,
		"cart":     cart,
	})
}

// Me reports the current session state
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cc := middleware.GetClientContext(r.Context())
	if cc == nil || !cc.Session.Valid() {
		respondJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          cc.Session.User,
	})
}
