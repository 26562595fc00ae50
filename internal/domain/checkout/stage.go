package checkout

// Stage is the wizard's position in the linear checkout flow. Forward
// progression only skips nothing; Back is allowed from Delivery and Payment.
type Stage string

const (
	// StageReview shows the cart contents before any details are collected.
	StageReview Stage = "review"
	// StageDelivery collects contact details and the delivery method.
	StageDelivery Stage = "delivery"
	// StagePayment collects payment details and an optional promo code.
	StagePayment Stage = "payment"
	// StageProcessing is entered on payment submission. It has no back
	// transition and is not re-enterable.
	StageProcessing Stage = "processing"
	// StageConfirmed means the order was placed and the cart cleared.
	StageConfirmed Stage = "confirmed"
	// StageDeclined means the payment was declined. Retry returns to
	// StagePayment with a fresh attempt.
	StageDeclined Stage = "declined"
)

// IsTerminal reports whether the wizard has finished. Declined is not
// terminal: the shopper can retry with a different card.
func (s Stage) IsTerminal() bool {
	return s == StageConfirmed
}

func (s Stage) String() string {
	return string(s)
}
