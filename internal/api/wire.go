package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campusmarket/storefront/internal/domain"
)

// amount encodes money as a bare JSON number. Decoding accepts numbers and
// quoted strings.
type amount struct {
	decimal.Decimal
}

func newAmount(d decimal.Decimal) amount {
	return amount{Decimal: d}
}

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

type identityWire struct {
	ID    string `json:"_id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role" validate:"omitempty,oneof=buyer seller admin"`
	Phone string `json:"phone,omitempty"`
}

func (w identityWire) toDomain() domain.Identity {
	return domain.Identity{
		ID:    w.ID,
		Name:  w.Name,
		Email: w.Email,
		Role:  domain.Role(defaultString(w.Role, string(domain.RoleBuyer))),
		Phone: w.Phone,
	}
}

type loginResponse struct {
	Token string       `json:"token" validate:"required"`
	User  identityWire `json:"user"`
}

type userResponse struct {
	User identityWire `json:"user"`
}

// cartLineWire accepts both the productId shape and raw product records
// that only carry _id.
type cartLineWire struct {
	ProductID string   `json:"productId,omitempty" validate:"required_without=LegacyID"`
	LegacyID  string   `json:"_id,omitempty"`
	Quantity  int      `json:"quantity" validate:"gte=1"`
	Price     amount   `json:"price"`
	Name      string   `json:"name,omitempty"`
	Image     string   `json:"image,omitempty"`
	Images    []string `json:"images,omitempty"`
	SellerID  string   `json:"seller,omitempty"`
}

func newCartLineWire(l domain.CartLine) cartLineWire {
	return cartLineWire{
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		Price:     newAmount(l.PriceAtAdd),
		Name:      l.Name,
		Image:     l.Image,
		SellerID:  l.SellerID,
	}
}

func (w cartLineWire) toDomain() (domain.CartLine, error) {
	if w.Price.IsNegative() {
		return domain.CartLine{}, fmt.Errorf("negative price for product %s", w.ProductID)
	}
	image := w.Image
	if image == "" && len(w.Images) > 0 {
		image = w.Images[0]
	}
	return domain.CartLine{
		ProductID:  defaultString(w.ProductID, w.LegacyID),
		Quantity:   w.Quantity,
		PriceAtAdd: w.Price.Decimal,
		Name:       w.Name,
		Image:      image,
		SellerID:   w.SellerID,
	}, nil
}

func encodeLines(lines []domain.CartLine) []cartLineWire {
	out := make([]cartLineWire, 0, len(lines))
	for _, l := range lines {
		out = append(out, newCartLineWire(l))
	}
	return out
}

type cartResponse struct {
	Items []cartLineWire `json:"items" validate:"dive"`
}

func (r cartResponse) toDomain() ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(r.Items))
	for _, w := range r.Items {
		l, err := w.toDomain()
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return domain.NormalizeLines(lines), nil
}

type mergeRequest struct {
	LocalCart []cartLineWire `json:"localCart"`
}

type saveRequest struct {
	Cart []cartLineWire `json:"cart"`
}

type orderItemWire struct {
	ProductID       string `json:"productId" validate:"required"`
	Quantity        int    `json:"quantity" validate:"gte=1"`
	PriceAtPurchase amount `json:"priceAtPurchase"`
}

type createOrderRequest struct {
	Items           []orderItemWire        `json:"items"`
	TotalAmount     amount                 `json:"totalAmount"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
}

type orderWire struct {
	ID              string                 `json:"_id" validate:"required"`
	Items           []orderItemWire        `json:"items" validate:"dive"`
	TotalAmount     amount                 `json:"totalAmount"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress" validate:"-"`
	OrderStatus     string                 `json:"orderStatus"`
	PaymentStatus   string                 `json:"paymentStatus"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt"`
}

func (w orderWire) toDomain() (domain.Order, error) {
	status := domain.OrderStatus(defaultString(w.OrderStatus, string(domain.OrderStatusPending)))
	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("order %s: unknown order status %q", w.ID, w.OrderStatus)
	}
	payment := domain.PaymentStatus(defaultString(w.PaymentStatus, string(domain.PaymentStatusPending)))
	switch payment {
	case domain.PaymentStatusPending, domain.PaymentStatusPaid, domain.PaymentStatusFailed:
	default:
		return domain.Order{}, fmt.Errorf("order %s: unknown payment status %q", w.ID, w.PaymentStatus)
	}

	items := make([]domain.OrderItem, 0, len(w.Items))
	for _, it := range w.Items {
		items = append(items, domain.OrderItem{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase.Decimal,
		})
	}
	return domain.Order{
		ID:              w.ID,
		Items:           items,
		TotalAmount:     w.TotalAmount.Decimal,
		ShippingAddress: w.ShippingAddress,
		OrderStatus:     status,
		PaymentStatus:   payment,
		CreatedAt:       parseTime(w.CreatedAt),
		UpdatedAt:       parseTime(w.UpdatedAt),
	}, nil
}

type trackingEventWire struct {
	Status    string `json:"status" validate:"required"`
	Note      string `json:"note,omitempty"`
	Timestamp string `json:"timestamp"`
}

type trackingWire struct {
	OrderID       string              `json:"orderId" validate:"required"`
	OrderStatus   string              `json:"orderStatus" validate:"required"`
	Timeline      []trackingEventWire `json:"timeline" validate:"dive"`
	StatusHistory []trackingEventWire `json:"statusHistory,omitempty" validate:"dive"`
}

func (w trackingWire) toDomain() (domain.OrderTracking, error) {
	current := domain.OrderStatus(w.OrderStatus)
	if !current.Valid() {
		return domain.OrderTracking{}, fmt.Errorf("tracking %s: unknown order status %q", w.OrderID, w.OrderStatus)
	}
	events := w.Timeline
	if len(events) == 0 {
		events = w.StatusHistory
	}
	timeline := make([]domain.TrackingEvent, 0, len(events))
	for _, ev := range events {
		st := domain.OrderStatus(ev.Status)
		if !st.Valid() {
			return domain.OrderTracking{}, fmt.Errorf("tracking %s: unknown event status %q", w.OrderID, ev.Status)
		}
		timeline = append(timeline, domain.TrackingEvent{
			Status:    st,
			Note:      ev.Note,
			Timestamp: parseTime(ev.Timestamp),
		})
	}
	return domain.OrderTracking{OrderID: w.OrderID, OrderStatus: current, Timeline: timeline}, nil
}

type mpesaInitiateRequest struct {
	OrderID     string `json:"orderId"`
	Amount      amount `json:"amount"`
	PhoneNumber string `json:"phoneNumber"`
}

type mpesaInitiateResponse struct {
	CheckoutRequestID string `json:"checkoutRequestID" validate:"required"`
}

type mpesaStatusResponse struct {
	Status             string `json:"status" validate:"required,oneof=pending completed failed"`
	MpesaReceiptNumber string `json:"mpesaReceiptNumber,omitempty"`
	FailureReason      string `json:"failureReason,omitempty"`
}

// MpesaStatus is one answer of the mobile-money status endpoint.
type MpesaStatus struct {
	Status        domain.ProviderStatus
	ReceiptNumber string
	FailureReason string
}

type hostedInitRequest struct {
	OrderID string `json:"orderId"`
	Amount  amount `json:"amount"`
}

type hostedInitResponse struct {
	PaymentURL    string `json:"paymentUrl" validate:"required,url"`
	TransactionID string `json:"transactionId"`
}

// HostedSession is the hosted card/bank payment page for an order.
type HostedSession struct {
	PaymentURL    string
	TransactionID string
}

type verifyResponse struct {
	Status string `json:"status" validate:"required"`
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

type productWire struct {
	ID       string   `json:"_id" validate:"required"`
	Name     string   `json:"name"`
	Price    amount   `json:"price"`
	Images   []string `json:"images,omitempty"`
	SellerID string   `json:"seller,omitempty"`
	Stock    int      `json:"stock"`
}

type productResponse struct {
	Product productWire `json:"product"`
}
