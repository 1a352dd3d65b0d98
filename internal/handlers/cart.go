package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"eventu/internal/middleware"
	"eventu/internal/models"
	"eventu/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CartHandler handles shopping cart requests
type CartHandler struct {
	carts *services.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts *services.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// ViewCart returns the client's cart, creating one lazily
func (h *CartHandler) ViewCart(w http.ResponseWriter, r *http.Request) {
	cc := middleware.GetClientContext(r.Context())

	cart, ok := h.carts.GetCart(h.cartSessionID(w, r, cc))
	if !ok {
		cart = h.carts.CreateCart(h.userID(cc), cc.CartSID)
	}

	respondJSON(w, http.StatusOK, cart)
}

// AddItem adds an item to the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cc := middleware.GetClientContext(r.Context())

	var item models.CartItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := h.cartSessionID(w, r, cc)
	h.carts.CreateCart(h.userID(cc), sessionID)

	if err := h.carts.AddItem(sessionID, item); err != nil {
		respondCartError(w, err)
		return
	}

	cart, _ := h.carts.GetCart(sessionID)
	respondJSON(w, http.StatusOK, cart)
}

// UpdateItem sets an item quantity. Quantity below 1 removes the item.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cc := middleware.GetClientContext(r.Context())
	itemID := chi.URLParam(r, "itemID")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.carts.UpdateItemQuantity(cc.CartSID, itemID, req.Quantity); err != nil {
		respondCartError(w, err)
		return
	}

	cart, _ := h.carts.GetCart(cc.CartSID)
	respondJSON(w, http.StatusOK, cart)
}

// RemoveItem deletes an item from the cart
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cc := middleware.GetClientContext(r.Context())
	itemID := chi.URLParam(r, "itemID")

	if err := h.carts.RemoveItem(cc.CartSID, itemID); err != nil {
		respondCartError(w, err)
		return
	}

	cart, _ := h.carts.GetCart(cc.CartSID)
	respondJSON(w, http.StatusOK, cart)
}

// ClearCart empties the cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cc := middleware.GetClientContext(r.Context())

	if err := h.carts.ClearCart(cc.CartSID); err != nil {
		respondCartError(w, err)
		return
	}

	cart, _ := h.carts.GetCart(cc.CartSID)
	respondJSON(w, http.StatusOK, cart)
}

// ApplyDiscount validates and applies a discount code
func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	cc := middleware.GetClientContext(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.carts.ApplyDiscount(cc.CartSID, req.Code); err != nil {
		respondCartError(w, err)
		return
	}

	cart, _ := h.carts.GetCart(cc.CartSID)
	respondJSON(w, http.StatusOK, cart)
}

// Checkout completes the purchase flow for an authenticated client and
// clears the cart. Route-level AuthGate guarantees the session here.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	cc := middleware.GetClientContext(r.Context())

	cart, ok := h.carts.GetCart(cc.CartSID)
	if !ok || cart.IsEmpty() {
		respondError(w, http.StatusUnprocessableEntity, "cart is empty")
		return
	}

	// The remote backend owns payment and inventory; here the cart's
	// local lifecycle ends.
	if err := h.carts.ClearCart(cc.CartSID); err != nil {
		respondCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status": "completed",
		"total":  cart.Total,
	})
}

// cartSessionID returns the client's cart session identifier, minting
// and persisting one when absent
func (h *CartHandler) cartSessionID(w http.ResponseWriter, r *http.Request, cc *middleware.ClientContext) string {
	if cc.CartSID == "" {
		cc.SetCartSessionID(w, r, uuid.New().String())
	}
	return cc.CartSID
}

// userID returns the authenticated user's id, if any
func (h *CartHandler) userID(cc *middleware.ClientContext) string {
	if cc.Session.Valid() {
		return cc.Session.User.ID
	}
	return ""
}

// respondCartError maps typed cart failures onto HTTP statuses
func respondCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrCartNotFound), errors.Is(err, models.ErrItemNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrDiscountNotFound),
		errors.Is(err, models.ErrDiscountExpired),
		errors.Is(err, models.ErrDiscountMinSubtotal),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidItem):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
