package httpapi

import (
	"errors"
	"net/http"

	"gozon/storefront/internal/order"

	"github.com/google/uuid"
)

type trackingResponse struct {
	Order    *order.Order          `json:"order"`
	Tracking []order.TrackingEntry `json:"tracking"`
}

func (s *Server) orderTracking(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")
	if _, err := uuid.Parse(orderID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	userID := r.Header.Get("X-User-ID")
	email := r.Header.Get("X-Guest-Email")
	if userID == "" && email == "" {
		writeError(w, http.StatusBadRequest, "missing X-User-ID or X-Guest-Email header")
		return
	}

	o, err := s.orders.Get(r.Context(), orderID)
	s.respondTracking(w, r, o, err, userID, email)
}

func (s *Server) trackByNumber(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "missing email")
		return
	}

	o, err := s.orders.GetByNumber(r.Context(), r.PathValue("orderNumber"))
	s.respondTracking(w, r, o, err, "", email)
}

// respondTracking answers 404 both for missing orders and for orders the
// caller does not own, so order ids cannot be probed.
func (s *Server) respondTracking(w http.ResponseWriter, r *http.Request, o *order.Order, err error, userID, email string) {
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.logger.Error("get order", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !o.VisibleTo(userID, email) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	entries, err := s.orders.Tracking(r.Context(), o.ID)
	if err != nil {
		s.logger.Error("list tracking", "order_id", o.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []order.TrackingEntry{}
	}

	writeJSON(w, http.StatusOK, trackingResponse{Order: o, Tracking: entries})
}
