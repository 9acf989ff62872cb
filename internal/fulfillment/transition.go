package fulfillment

import (
	"gozon/storefront/internal/order"
	"gozon/storefront/internal/paymob"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeRefunded Outcome = "refunded"
	OutcomeFailed   Outcome = "failed"
)

const (
	descConfirmed = "Payment received, order confirmed"
	descRefunded  = "Payment refunded"
	descFailed    = "Payment failed, awaiting a new payment attempt"
)

// Classify buckets a transaction. A clean success is checked first, so a
// transaction flagged both successful and refunded counts as refunded.
func Classify(tx paymob.Transaction) Outcome {
	switch {
	case tx.Success && !tx.IsVoided && !tx.IsRefunded:
		return OutcomeSuccess
	case tx.IsRefunded:
		return OutcomeRefunded
	default:
		return OutcomeFailed
	}
}

// Plan maps an outcome to the order change it causes. Every branch carries
// the provider transaction id so redeliveries of the same transaction can be
// told apart from new attempts.
func Plan(outcome Outcome, transactionID int64) order.Transition {
	switch outcome {
	case OutcomeSuccess:
		return order.Transition{
			Outcome:        string(outcome),
			PaymentStatus:  order.PaymentPaid,
			Status:         order.StatusConfirmed,
			TrackingStatus: order.StatusConfirmed,
			Description:    descConfirmed,
			TransactionID:  transactionID,
		}
	case OutcomeRefunded:
		return order.Transition{
			Outcome:        string(outcome),
			PaymentStatus:  order.PaymentRefunded,
			Status:         order.StatusRefunded,
			TrackingStatus: order.StatusRefunded,
			Description:    descRefunded,
			TransactionID:  transactionID,
		}
	default:
		return order.Transition{
			Outcome:        string(OutcomeFailed),
			PaymentStatus:  order.PaymentFailed,
			TrackingStatus: order.StatusPending,
			Description:    descFailed,
			TransactionID:  transactionID,
		}
	}
}
