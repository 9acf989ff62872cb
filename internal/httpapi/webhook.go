package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"gozon/storefront/internal/fulfillment"
	"gozon/storefront/internal/order"
	"gozon/storefront/internal/paymob"
)

type webhookResponse struct {
	Received         bool   `json:"received"`
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
	Outcome          string `json:"outcome,omitempty"`
}

func (s *Server) paymobWebhook(w http.ResponseWriter, r *http.Request) {
	var cb paymob.Callback
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&cb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	signature := r.URL.Query().Get("hmac")
	if signature == "" {
		signature = cb.HMAC
	}

	res, err := s.webhooks.HandleTransaction(r.Context(), cb.Obj, signature)
	if err != nil {
		switch {
		case errors.Is(err, fulfillment.ErrInvalidSignature):
			writeError(w, http.StatusUnauthorized, "invalid signature")
		case errors.Is(err, order.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		default:
			s.logger.Error("paymob webhook",
				"paymob_order_id", cb.Obj.Order.ID, "transaction_id", cb.Obj.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "failed to process webhook")
		}
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Received:         true,
		AlreadyProcessed: res.AlreadyProcessed,
		Outcome:          string(res.Outcome),
	})
}
