package contracts

import "time"

const EventOrderStatusChanged = "order.status_changed"

type OrderStatusChangedEvent struct {
	EventID             string    `json:"event_id"`
	OrderID             string    `json:"order_id"`
	OrderNumber         string    `json:"order_number"`
	Status              string    `json:"status"`
	PaymentStatus       string    `json:"payment_status"`
	Outcome             string    `json:"outcome"`
	Description         string    `json:"description"`
	PaymobTransactionID int64     `json:"paymob_transaction_id,omitempty"`
	OccurredAt          time.Time `json:"occurred_at"`
}
