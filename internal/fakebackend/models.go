package fakebackend

import "time"

const (
	roleBuyer  = "buyer"
	roleSeller = "seller"
	roleAdmin  = "admin"
)

// Product is a catalog entry. Prices travel as plain JSON numbers.
type Product struct {
	ID     string
	Name   string
	Price  float64
	Images []string
	Seller string
	Stock  int
}

type productJSON struct {
	ID     string   `json:"_id"`
	Name   string   `json:"name"`
	Price  float64  `json:"price"`
	Images []string `json:"images,omitempty"`
	Seller string   `json:"seller,omitempty"`
	Stock  int      `json:"stock"`
}

type user struct {
	ID    string
	Name  string
	Email string
	Role  string
	Phone string
	hash  []byte
}

type userJSON struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Phone string `json:"phone,omitempty"`
}

func (u *user) toJSON() userJSON {
	return userJSON{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Phone: u.Phone}
}

type lineJSON struct {
	ProductID string  `json:"productId" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	Price     float64 `json:"price" validate:"gte=0"`
	Name      string  `json:"name,omitempty"`
	Image     string  `json:"image,omitempty"`
	Seller    string  `json:"seller,omitempty"`
}

type cartJSON struct {
	Items []lineJSON `json:"items"`
}

type orderItemJSON struct {
	ProductID       string  `json:"productId" validate:"required"`
	Quantity        int     `json:"quantity" validate:"gte=1"`
	PriceAtPurchase float64 `json:"priceAtPurchase" validate:"gte=0"`
}

type addressJSON struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
}

type eventJSON struct {
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
	Timestamp string `json:"timestamp"`
}

type orderJSON struct {
	ID              string          `json:"_id"`
	User            string          `json:"user"`
	Items           []orderItemJSON `json:"items"`
	TotalAmount     float64         `json:"totalAmount"`
	ShippingAddress addressJSON     `json:"shippingAddress"`
	OrderStatus     string          `json:"orderStatus"`
	PaymentStatus   string          `json:"paymentStatus"`
	StatusHistory   []eventJSON     `json:"statusHistory"`
	CreatedAt       string          `json:"createdAt"`
	UpdatedAt       string          `json:"updatedAt"`
}

type trackingJSON struct {
	OrderID     string      `json:"orderId"`
	OrderStatus string      `json:"orderStatus"`
	Timeline    []eventJSON `json:"timeline"`
}

type mpesaTx struct {
	ID      string
	OrderID string
	UserID  string
	Checks  int
	Status  string
	Receipt string
	Reason  string
	Settled bool
}

type hostedTx struct {
	ID      string
	OrderID string
	UserID  string
	Status  string
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
