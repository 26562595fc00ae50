package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/emberroast/brewcart/internal/domain/cart"
	"github.com/emberroast/brewcart/internal/domain/coupon"
)

var (
	// ErrEmptyCart is returned when checkout is started or submitted over an
	// empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidTransition is returned for an action the current stage does
	// not allow.
	ErrInvalidTransition = errors.New("invalid checkout transition")
	// ErrProcessing is returned for a submit that races an in-flight payment
	// attempt. The first attempt proceeds; the duplicate is rejected.
	ErrProcessing = errors.New("payment already processing")
	// ErrCompleted is returned for any action after the order was confirmed.
	ErrCompleted = errors.New("checkout already completed")
)

// Receipt is the order data handed to the Placer when a payment is approved.
type Receipt struct {
	OrderID    string
	SessionID  string
	AttemptKey string
	Items      []cart.LineItem
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
	Delivery   DeliveryInfo
	PlacedAt   time.Time
}

// Placer persists a confirmed order downstream. The wizard calls it exactly
// once per checkout, after payment approval and before the cart is cleared.
type Placer interface {
	Place(ctx context.Context, r Receipt) error
}

// Wizard drives one session's linear checkout flow over the cart store's
// current contents. It never mutates cart pricing; its only cart mutation is
// the single Clear on confirmation.
//
// All methods are safe for concurrent use; the wizard lock is released while
// the payment processor runs so the Processing stage stays observable.
type Wizard struct {
	sessionID string
	cart      *cart.Store
	coupons   coupon.Validator
	processor Processor
	placer    Placer
	now       func() time.Time
	lg        *zap.Logger

	mu            sync.Mutex
	stage         Stage
	delivery      DeliveryInfo
	declineReason string
	orderID       string
	cleared       bool
}

// NewWizard creates a checkout wizard in the Review stage. The coupon
// validator may be nil when promo codes are disabled.
func NewWizard(sessionID string, c *cart.Store, coupons coupon.Validator, processor Processor, placer Placer, lg *zap.Logger) *Wizard {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Wizard{
		sessionID: sessionID,
		cart:      c,
		coupons:   coupons,
		processor: processor,
		placer:    placer,
		now:       time.Now,
		lg:        lg,
		stage:     StageReview,
	}
}

// Stage returns the wizard's current stage.
func (w *Wizard) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

// Delivery returns the delivery details collected so far.
func (w *Wizard) Delivery() DeliveryInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.delivery
}

// DeclineReason returns the processor's reason after a declined payment.
func (w *Wizard) DeclineReason() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.declineReason
}

// OrderID returns the placed order's ID once the wizard is confirmed.
func (w *Wizard) OrderID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.orderID
}

// ProceedToDelivery advances Review -> Delivery. The cart must not be empty.
func (w *Wizard) ProceedToDelivery() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.require(StageReview); err != nil {
		return err
	}
	if w.cart.TotalItems() == 0 {
		return ErrEmptyCart
	}
	w.stage = StageDelivery
	return nil
}

// SubmitDelivery validates the delivery form and advances Delivery ->
// Payment. Validation failures are returned as per-field messages and the
// wizard stays on Delivery.
func (w *Wizard) SubmitDelivery(info DeliveryInfo) (FieldErrors, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.require(StageDelivery); err != nil {
		return nil, err
	}
	if fe := ValidateDelivery(info); !fe.Valid() {
		return fe, nil
	}
	w.delivery = info
	w.stage = StagePayment
	return nil, nil
}

// Back returns to the immediately prior collecting stage: Delivery -> Review,
// Payment -> Delivery. No other stage has a back transition.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.stage {
	case StageDelivery:
		w.stage = StageReview
	case StagePayment:
		w.stage = StageDelivery
	case StageConfirmed:
		return ErrCompleted
	default:
		return errors.Wrapf(ErrInvalidTransition, "back from %s", w.stage)
	}
	return nil
}

// Retry returns a declined checkout to the Payment stage. The next submit
// runs as a fresh attempt with a new idempotency key.
func (w *Wizard) Retry() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.require(StageDeclined); err != nil {
		return err
	}
	w.declineReason = ""
	w.stage = StagePayment
	return nil
}

// SubmitPayment validates the payment form, applies an optional promo code,
// and runs the payment attempt. Field failures keep the wizard on Payment.
// A declined payment moves to Declined; approval places the order, clears
// the cart exactly once, and moves to Confirmed. A processor transport error
// returns the wizard to Payment so the shopper can retry: the retry is a new
// attempt with its own idempotency key, so a gateway that did charge will
// de-duplicate on its side.
func (w *Wizard) SubmitPayment(ctx context.Context, info PaymentInfo) (FieldErrors, error) {
	w.mu.Lock()
	if w.stage == StageProcessing {
		w.mu.Unlock()
		return nil, ErrProcessing
	}
	if err := w.require(StagePayment); err != nil {
		w.mu.Unlock()
		return nil, err
	}

	if fe := ValidatePayment(info, w.now()); !fe.Valid() {
		w.mu.Unlock()
		return fe, nil
	}

	items := w.cart.Items()
	if len(items) == 0 {
		w.mu.Unlock()
		return nil, ErrEmptyCart
	}

	subtotal := w.cart.TotalAmount()
	discount := decimal.Zero
	if info.CouponCode != "" {
		if w.coupons == nil {
			w.mu.Unlock()
			return FieldErrors{"couponCode": "promo codes are not available"}, nil
		}
		d, err := w.coupons.Validate(ctx, info.CouponCode, items)
		switch {
		case err == nil:
			discount = d.Amount
		case errors.Is(err, coupon.ErrInvalidCoupon),
			errors.Is(err, coupon.ErrCouponExpired),
			errors.Is(err, coupon.ErrCouponUsageLimitReached):
			w.mu.Unlock()
			return FieldErrors{"couponCode": err.Error()}, nil
		default:
			w.mu.Unlock()
			return nil, errors.Wrap(err, "validate promo code")
		}
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	attemptKey := uuid.New().String()
	w.stage = StageProcessing
	w.mu.Unlock()

	res, err := w.processor.Authorize(ctx, AuthorizeRequest{
		IdempotencyKey: attemptKey,
		Amount:         total,
		Currency:       "USD",
		CardNumber:     info.CardNumber,
		CardHolder:     info.CardHolder,
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.stage = StagePayment
		return nil, errors.Wrap(err, "authorize payment")
	}

	if !res.Approved {
		w.stage = StageDeclined
		w.declineReason = res.DeclineReason
		w.lg.Info("payment declined",
			zap.String("session_id", w.sessionID),
			zap.String("reason", res.DeclineReason))
		return nil, nil
	}

	receipt := Receipt{
		OrderID:    uuid.New().String(),
		SessionID:  w.sessionID,
		AttemptKey: attemptKey,
		Items:      items,
		Subtotal:   subtotal,
		Discount:   discount.Round(2),
		Total:      total,
		CouponCode: info.CouponCode,
		Delivery:   w.delivery,
		PlacedAt:   w.now(),
	}
	if err := w.placer.Place(ctx, receipt); err != nil {
		w.stage = StagePayment
		return nil, errors.Wrap(err, "place order")
	}

	w.orderID = receipt.OrderID
	w.stage = StageConfirmed
	if !w.cleared {
		w.cleared = true
		w.cart.Clear(ctx)
	}
	w.lg.Info("order confirmed",
		zap.String("session_id", w.sessionID),
		zap.String("order_id", receipt.OrderID))
	return nil, nil
}

func (w *Wizard) require(stage Stage) error {
	if w.stage == StageConfirmed {
		return ErrCompleted
	}
	if w.stage != stage {
		return errors.Wrapf(ErrInvalidTransition, "expected %s, at %s", stage, w.stage)
	}
	return nil
}
