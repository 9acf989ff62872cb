// Package paymob holds the Paymob transaction callback payload and its HMAC verification.
package paymob

type Transaction struct {
	ID                   int64      `json:"id"`
	Pending              bool       `json:"pending"`
	AmountCents          int64      `json:"amount_cents"`
	Success              bool       `json:"success"`
	IsAuth               bool       `json:"is_auth"`
	IsCapture            bool       `json:"is_capture"`
	IsStandalonePayment  bool       `json:"is_standalone_payment"`
	IsVoided             bool       `json:"is_voided"`
	IsRefunded           bool       `json:"is_refunded"`
	Is3DSecure           bool       `json:"is_3d_secure"`
	IntegrationID        int64      `json:"integration_id"`
	HasParentTransaction bool       `json:"has_parent_transaction"`
	ErrorOccured         bool       `json:"error_occured"`
	Currency             string     `json:"currency"`
	CreatedAt            string     `json:"created_at"`
	Owner                int64      `json:"owner"`
	Order                OrderRef   `json:"order"`
	SourceData           SourceData `json:"source_data"`
}

type OrderRef struct {
	ID int64 `json:"id"`
}

type SourceData struct {
	Pan     string `json:"pan"`
	Type    string `json:"type"`
	SubType string `json:"sub_type"`
}

// Callback is the body Paymob posts to the transaction processed webhook.
type Callback struct {
	Type string      `json:"type"`
	Obj  Transaction `json:"obj"`
	HMAC string      `json:"hmac,omitempty"`
}
