package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"eventu/internal/models"

	"github.com/google/uuid"
)

// CartConfig holds the pricing knobs applied on every recalculation
type CartConfig struct {
	TaxRate     float64 // e.g. 0.16 for 16%
	FeePerUnit  int     // service fee per ticket/unit, in cents
	DiscountSet []models.DiscountRule
}

// CartService keeps one cart per session identifier and recomputes all
// totals deterministically from the item list after every mutation.
type CartService struct {
	mu     sync.RWMutex
	carts  map[string]*models.Cart
	config CartConfig
	now    func() time.Time
}

// NewCartService creates a cart service
func NewCartService(config CartConfig) *CartService {
	return &CartService{
		carts:  make(map[string]*models.Cart),
		config: config,
		now:    time.Now,
	}
}

// CreateCart returns the cart for sessionID, creating it lazily. It is
// idempotent per session identifier: an existing cart is reused.
func (s *CartService) CreateCart(userID, sessionID string) *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cart, ok := s.carts[sessionID]; ok {
		if userID != "" && cart.UserID == "" {
			cart.UserID = userID
		}
		return s.copyCart(cart)
	}

	cart := &models.Cart{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		UserID:    userID,
		Items:     []models.CartItem{},
	}
	s.carts[sessionID] = cart
	return s.copyCart(cart)
}

// GetCart returns the cart for sessionID. A discount whose rule has
// become invalid since application is dropped here, on load, and the
// drop is logged; the returned cart already reflects the removal.
func (s *CartService) GetCart(sessionID string) (*models.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[sessionID]
	if !ok {
		return nil, false
	}

	s.revalidateDiscount(cart)
	return s.copyCart(cart), true
}

// AddItem appends an item to the cart, folding it into an existing
// mergeable line. Validation failures are returned as typed reasons and
// leave the cart unchanged.
func (s *CartService) AddItem(sessionID string, item models.CartItem) error {
	if item.Quantity < 1 {
		return models.ErrInvalidQuantity
	}
	if item.ProductID == "" || item.Price < 0 {
		return models.ErrInvalidItem
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[sessionID]
	if !ok {
		return models.ErrCartNotFound
	}

	merged := false
	for i := range cart.Items {
		if cart.Items[i].MergesWith(&item) {
			cart.Items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}

	if !merged {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		cart.Items = append(cart.Items, item)
	}

	s.recalculate(cart)
	return nil
}

// UpdateItemQuantity sets an item's quantity. A quantity below 1 is
// equivalent to removal; items with quantity 0 are never retained.
func (s *CartService) UpdateItemQuantity(sessionID, itemID string, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(sessionID, itemID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[sessionID]
	if !ok {
		return models.ErrCartNotFound
	}

	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			cart.Items[i].Quantity = quantity
			s.recalculate(cart)
			return nil
		}
	}

	return models.ErrItemNotFound
}

// RemoveItem deletes an item from the cart
func (s *CartService) RemoveItem(sessionID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[sessionID]
	if !ok {
		return models.ErrCartNotFound
	}

	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			s.recalculate(cart)
			return nil
		}
	}

	return models.ErrItemNotFound
}

// ClearCart empties the cart and resets all totals and the discount
func (s *CartService) ClearCart(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[sessionID]
	if !ok {
		return models.ErrCartNotFound
	}

	cart.Items = []models.CartItem{}
	cart.DiscountCode = ""
	s.recalculate(cart)
	return nil
}

// ReplaceItems swaps the cart's item list wholesale. Restoration uses
// this instead of replaying appends so that restoring twice cannot
// duplicate items.
func (s *CartService) ReplaceItems(sessionID string, items []models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[sessionID]
	if !ok {
		return models.ErrCartNotFound
	}

	cart.Items = make([]models.CartItem, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		cart.Items = append(cart.Items, item)
	}

	s.recalculate(cart)
	return nil
}

// ApplyDiscount validates code against the local rule set before
// mutating the cart. Invalid codes leave the cart unchanged and report
// the reason.
func (s *CartService) ApplyDiscount(sessionID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[sessionID]
	if !ok {
		return models.ErrCartNotFound
	}

	rule := s.findRule(code)
	if rule == nil {
		return models.ErrDiscountNotFound
	}

	if err := rule.Validate(cart.Subtotal, s.now()); err != nil {
		return fmt.Errorf("discount %q rejected: %w", code, err)
	}

	cart.DiscountCode = code
	s.recalculate(cart)
	return nil
}

// DropCart discards the cart for sessionID entirely
func (s *CartService) DropCart(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
}

// findRule looks up a discount rule by code
func (s *CartService) findRule(code string) *models.DiscountRule {
	for i := range s.config.DiscountSet {
		if s.config.DiscountSet[i].Code == code {
			return &s.config.DiscountSet[i]
		}
	}
	return nil
}

// revalidateDiscount drops an applied discount whose rule no longer
// holds. Callers must hold mu.
func (s *CartService) revalidateDiscount(cart *models.Cart) {
	if cart.DiscountCode == "" {
		return
	}

	rule := s.findRule(cart.DiscountCode)
	if rule != nil && rule.Validate(cart.Subtotal, s.now()) == nil {
		return
	}

	log.Printf("cart: discount %q no longer valid, removing from cart %s", cart.DiscountCode, cart.ID)
	cart.DiscountCode = ""
	s.recalculate(cart)
}

// recalculate recomputes every derived amount from the item list.
// Callers must hold mu. The cart invariant holds afterwards:
// Total == Subtotal + Tax + Fees - Discount.
func (s *CartService) recalculate(cart *models.Cart) {
	subtotal, tax, fees := 0, 0, 0

	for i := range cart.Items {
		item := &cart.Items[i]
		item.Subtotal = item.Price * item.Quantity
		item.Tax = int(float64(item.Subtotal) * s.config.TaxRate)
		item.Total = item.Subtotal + item.Tax - item.Discount

		subtotal += item.Subtotal
		tax += item.Tax
		fees += s.config.FeePerUnit * item.Quantity
	}

	cart.Subtotal = subtotal
	cart.Tax = tax
	cart.Fees = fees

	cart.Discount = 0
	if cart.DiscountCode != "" {
		if rule := s.findRule(cart.DiscountCode); rule != nil {
			cart.Discount = rule.Apply(subtotal)
		}
	}

	cart.Total = cart.Subtotal + cart.Tax + cart.Fees - cart.Discount
}

// copyCart returns a defensive copy so callers cannot mutate service
// state without going through a mutation method
func (s *CartService) copyCart(cart *models.Cart) *models.Cart {
	out := *cart
	out.Items = make([]models.CartItem, len(cart.Items))
	copy(out.Items, cart.Items)
	return &out
}
