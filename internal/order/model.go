package order

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Order struct {
	ID                  string        `json:"id"`
	OrderNumber         string        `json:"order_number"`
	UserID              *string       `json:"user_id,omitempty"`
	GuestEmail          *string       `json:"guest_email,omitempty"`
	Status              Status        `json:"status"`
	PaymentStatus       PaymentStatus `json:"payment_status"`
	SubtotalCents       int64         `json:"subtotal_cents"`
	ShippingCostCents   int64         `json:"shipping_cost_cents"`
	DiscountCents       int64         `json:"discount_cents"`
	TotalCents          int64         `json:"total_cents"`
	PaymobOrderID       *int64        `json:"paymob_order_id,omitempty"`
	PaymobTransactionID *int64        `json:"paymob_transaction_id,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// VisibleTo reports whether the caller identified by userID or guestEmail owns the order.
func (o *Order) VisibleTo(userID, guestEmail string) bool {
	if userID != "" && o.UserID != nil && strings.EqualFold(*o.UserID, userID) {
		return true
	}
	if guestEmail != "" && o.GuestEmail != nil && strings.EqualFold(strings.TrimSpace(*o.GuestEmail), strings.TrimSpace(guestEmail)) {
		return true
	}
	return false
}

type Item struct {
	ID             string  `json:"id"`
	OrderID        string  `json:"order_id"`
	ProductID      string  `json:"product_id"`
	VariantID      *string `json:"variant_id,omitempty"`
	Quantity       int     `json:"quantity"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	LineTotalCents int64   `json:"line_total_cents"`
}

type TrackingEntry struct {
	ID          int64     `json:"id"`
	OrderID     string    `json:"order_id"`
	Status      Status    `json:"status"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Transition is a payment-driven change of an order row together with the
// tracking entry that records it.
type Transition struct {
	Outcome        string
	PaymentStatus  PaymentStatus
	Status         Status // empty keeps the current order status
	TrackingStatus Status
	Description    string
	TransactionID  int64 // zero keeps the stored provider transaction id
}

// AllowedFrom lists the payment statuses an order may hold for a transition
// to target to be applied. A paid order only accepts a refund.
func AllowedFrom(target PaymentStatus) []PaymentStatus {
	switch target {
	case PaymentPaid:
		return []PaymentStatus{PaymentPending, PaymentFailed}
	case PaymentFailed:
		return []PaymentStatus{PaymentPending, PaymentFailed}
	case PaymentRefunded:
		return []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}
	default:
		return nil
	}
}

// CanApply reports whether an order in payment status from, last touched by
// provider transaction lastTransactionID, accepts t. Repeating the same
// transaction into the status it already produced is a redelivery.
func (t Transition) CanApply(from PaymentStatus, lastTransactionID *int64) bool {
	allowed := false
	for _, s := range AllowedFrom(t.PaymentStatus) {
		if s == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	return from != t.PaymentStatus || !t.sameTransaction(lastTransactionID)
}

func (t Transition) sameTransaction(last *int64) bool {
	if t.TransactionID == 0 {
		return last == nil
	}
	return last != nil && *last == t.TransactionID
}
