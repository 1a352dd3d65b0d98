package models

// ProductType distinguishes what a cart line refers to
type ProductType string

const (
	ProductTicket      ProductType = "ticket"
	ProductMerchandise ProductType = "merchandise"
)

// Cart represents a shopping cart scoped to a session identifier
type Cart struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"session_id"`
	UserID       string     `json:"user_id,omitempty"`
	Items        []CartItem `json:"items"`
	Subtotal     int        `json:"subtotal"` // in cents
	Tax          int        `json:"tax"`
	Discount     int        `json:"discount"`
	DiscountCode string     `json:"discount_code,omitempty"`
	Fees         int        `json:"fees"`
	Total        int        `json:"total"`
}

// CartItem represents an item in the shopping cart
type CartItem struct {
	ID          string            `json:"id"`
	ProductID   string            `json:"product_id"`
	ProductType ProductType       `json:"product_type"`
	EventID     string            `json:"event_id,omitempty"`
	TicketType  string            `json:"ticket_type,omitempty"`
	SeatNumber  string            `json:"seat_number,omitempty"`
	Price       int               `json:"price"` // in cents
	Quantity    int               `json:"quantity"`
	Subtotal    int               `json:"subtotal"`
	Tax         int               `json:"tax"`
	Discount    int               `json:"discount"`
	Total       int               `json:"total"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// IsEmpty returns true if the cart has no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Quantity returns the total number of units across all items
func (c *Cart) Quantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// MergesWith reports whether another line can be folded into this one.
// Seat-assigned lines never merge; a seat is a distinct unit.
func (i *CartItem) MergesWith(other *CartItem) bool {
	if i.SeatNumber != "" || other.SeatNumber != "" {
		return false
	}
	return i.ProductID == other.ProductID && i.TicketType == other.TicketType
}
