package model

import "time"

// Role is the privilege level carried in an access token
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// DefaultRating is shown for plants that have no reviews yet
const DefaultRating = 5.0

// Plant is a catalog entry
type Plant struct {
	ID            string    `json:"id"`
	Code          string    `json:"plantId"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         int       `json:"price"`
	OriginalPrice *int      `json:"originalPrice,omitempty"`
	Categories    []string  `json:"categories"`
	Stock         int       `json:"stock"`
	Rating        float64   `json:"rating"`
	ReviewCount   int       `json:"reviewCount"`
	IsActive      bool      `json:"isActive"`
	ImageURL      string    `json:"image"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PlantFilter narrows catalog listings. Inactive plants are hidden unless IncludeInactive is set.
type PlantFilter struct {
	Category        string
	Search          string
	IncludeInactive bool
}

// CartItem references a live catalog entry. Plant is filled in on reads only.
type CartItem struct {
	PlantID  string `json:"plantId"`
	Quantity int    `json:"quantity"`
	Plant    *Plant `json:"plant,omitempty"`
}

// Cart is the single in-progress selection of a user
type Cart struct {
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	Total     int        `json:"total"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IndexOf returns the position of plantID in the cart or -1
func (c *Cart) IndexOf(plantID string) int {
	for i, item := range c.Items {
		if item.PlantID == plantID {
			return i
		}
	}
	return -1
}

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type PaymentMethod string

const PaymentCOD PaymentMethod = "COD"

// Address is the delivery address captured at checkout
type Address struct {
	Street string `json:"street" validate:"required"`
	City   string `json:"city" validate:"required"`
	State  string `json:"state" validate:"required"`
	Zip    string `json:"zip" validate:"required"`
	Phone  string `json:"phone" validate:"required"`
}

// OrderItem is a frozen copy of a cart line at purchase time
type OrderItem struct {
	PlantID  string `json:"plantId"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int    `json:"price"`
	Rated    bool   `json:"rated"`
}

// Order is the durable record of a purchase
type Order struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	CustomerName  string        `json:"customerName"`
	CustomerEmail string        `json:"customerEmail"`
	Items         []OrderItem   `json:"items"`
	Address       Address       `json:"deliveryAddress"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Total         int           `json:"total"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Item returns the line for plantID, if present
func (o *Order) Item(plantID string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].PlantID == plantID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// OrderFilter is used by the admin listing
type OrderFilter struct {
	Status OrderStatus
	Limit  int
	Offset int
}

// OrderStats summarizes all orders for the admin dashboard
type OrderStats struct {
	TotalOrders int                 `json:"totalOrders"`
	ByStatus    map[OrderStatus]int `json:"byStatus"`
	Revenue     int                 `json:"revenue"`
}

// Rating is one score per (user, plant, order)
type Rating struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PlantID   string    `json:"plantId"`
	OrderID   string    `json:"orderId"`
	Score     int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EligibleItem is an unrated line of a delivered order
type EligibleItem struct {
	PlantID  string `json:"plantId"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Quantity int    `json:"quantity"`
	Price    int    `json:"price"`
}

// User is an account of the storefront
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
