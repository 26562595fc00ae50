package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AuthorizeRequest is a single payment attempt. IdempotencyKey is unique per
// attempt: a processor receiving the same key twice must not charge twice.
type AuthorizeRequest struct {
	IdempotencyKey string
	Amount         decimal.Decimal
	Currency       string
	CardNumber     string
	CardHolder     string
}

// AuthResult is the processor's decision. A declined payment is a result,
// not an error; errors are reserved for transport-level failures where the
// outcome is unknown.
type AuthResult struct {
	Approved      bool
	DeclineReason string
	Reference     string
}

// Processor authorizes and captures a payment. Implementations must be safe
// for concurrent use across sessions.
type Processor interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (AuthResult, error)
}

// SimulatedProcessor stands in for a real payment gateway. It sleeps through
// a fixed authorize/capture sequence and approves everything except a small
// table of test card suffixes, mirroring gateway test-card conventions.
type SimulatedProcessor struct {
	AuthorizeDelay time.Duration
	CaptureDelay   time.Duration

	// declineSuffixes maps card number suffixes to decline reasons.
	declineSuffixes map[string]string
}

// NewSimulatedProcessor returns a processor with the given stage delays and
// the default decline table ("0002" declines, "9995" reports insufficient
// funds).
func NewSimulatedProcessor(authorizeDelay, captureDelay time.Duration) *SimulatedProcessor {
	return &SimulatedProcessor{
		AuthorizeDelay: authorizeDelay,
		CaptureDelay:   captureDelay,
		declineSuffixes: map[string]string{
			"0002": "card declined",
			"9995": "insufficient funds",
		},
	}
}

// Authorize runs the simulated authorize and capture stages, honouring
// context cancellation between stages.
func (p *SimulatedProcessor) Authorize(ctx context.Context, req AuthorizeRequest) (AuthResult, error) {
	if err := sleep(ctx, p.AuthorizeDelay); err != nil {
		return AuthResult{}, err
	}

	for suffix, reason := range p.declineSuffixes {
		if strings.HasSuffix(req.CardNumber, suffix) {
			return AuthResult{Approved: false, DeclineReason: reason}, nil
		}
	}

	if err := sleep(ctx, p.CaptureDelay); err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		Approved:  true,
		Reference: "sim_" + req.IdempotencyKey,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
