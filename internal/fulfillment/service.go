package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gozon/storefront/internal/order"
	"gozon/storefront/internal/paymob"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrPersistence      = errors.New("persist order transition")
)

type OrderStore interface {
	FindByPaymobOrderID(ctx context.Context, paymobOrderID int64) (*order.Order, error)
	ApplyTransition(ctx context.Context, orderID string, t order.Transition) (bool, error)
	Items(ctx context.Context, orderID string) ([]order.Item, error)
	DecrementStock(ctx context.Context, variantID string, qty int) (int, error)
}

type Result struct {
	OrderID          string
	Outcome          Outcome
	AlreadyProcessed bool
}

type Service struct {
	store    OrderStore
	verifier *paymob.Verifier
	logger   *slog.Logger
}

func NewService(store OrderStore, verifier *paymob.Verifier, logger *slog.Logger) *Service {
	return &Service{store: store, verifier: verifier, logger: logger}
}

// HandleTransaction applies a Paymob transaction notification to its order.
// Redelivered notifications come back with AlreadyProcessed set and change nothing.
func (s *Service) HandleTransaction(ctx context.Context, tx paymob.Transaction, signature string) (Result, error) {
	if !s.verifier.Verify(tx, signature) {
		s.logger.Warn("paymob webhook signature rejected",
			"paymob_order_id", tx.Order.ID, "transaction_id", tx.ID)
		return Result{}, ErrInvalidSignature
	}

	o, err := s.store.FindByPaymobOrderID(ctx, tx.Order.ID)
	if err != nil {
		return Result{}, err
	}

	outcome := Classify(tx)
	applied, err := s.store.ApplyTransition(ctx, o.ID, Plan(outcome, tx.ID))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if !applied {
		s.logger.Info("paymob notification already processed",
			"order_id", o.ID, "transaction_id", tx.ID, "payment_status", o.PaymentStatus)
		return Result{OrderID: o.ID, Outcome: outcome, AlreadyProcessed: true}, nil
	}

	s.logger.Info("order payment transition applied",
		"order_id", o.ID, "transaction_id", tx.ID, "outcome", outcome)

	if outcome == OutcomeSuccess {
		// The payment is already committed; stock bookkeeping must not depend on
		// the webhook caller staying connected.
		s.adjustInventory(context.WithoutCancel(ctx), o.ID)
	}

	return Result{OrderID: o.ID, Outcome: outcome}, nil
}

func (s *Service) adjustInventory(ctx context.Context, orderID string) {
	items, err := s.store.Items(ctx, orderID)
	if err != nil {
		s.logger.Error("load order items for stock adjustment", "order_id", orderID, "err", err)
		return
	}

	for _, it := range items {
		if it.VariantID == nil {
			continue
		}
		remaining, err := s.store.DecrementStock(ctx, *it.VariantID, it.Quantity)
		if err != nil {
			s.logger.Error("decrement variant stock",
				"order_id", orderID, "variant_id", *it.VariantID, "quantity", it.Quantity, "err", err)
			continue
		}
		if remaining == 0 {
			s.logger.Warn("variant out of stock", "variant_id", *it.VariantID, "order_id", orderID)
		}
	}
}
