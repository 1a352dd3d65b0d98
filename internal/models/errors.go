package models

import "errors"

// Common errors used throughout the application
var (
	ErrCartNotFound        = errors.New("cart not found")
	ErrItemNotFound        = errors.New("cart item not found")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInvalidItem         = errors.New("invalid cart item")
	ErrDiscountNotFound    = errors.New("discount code not found")
	ErrDiscountExpired     = errors.New("discount code has expired")
	ErrDiscountMinSubtotal = errors.New("cart subtotal below discount minimum")
	ErrNoSnapshot          = errors.New("no persisted cart snapshot")
	ErrUnauthorized        = errors.New("unauthorized access")
	ErrSessionInvalid      = errors.New("invalid or expired session")
)
