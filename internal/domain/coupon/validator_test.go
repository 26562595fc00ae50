package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberroast/brewcart/internal/domain/cart"
)

type mockCouponRepo struct {
	rule          *Rule
	err           error
	incrementErr  error
	incrementCode string
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func (m *mockCouponRepo) IncrementUses(_ context.Context, code string) error {
	m.incrementCode = code
	return m.incrementErr
}

func oneItem(total string) []cart.LineItem {
	return []cart.LineItem{{
		Product:    cart.ProductSnapshot{ID: "p1"},
		Quantity:   1,
		TotalPrice: decimal.RequireFromString(total),
	}}
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name       string
		repo       *mockCouponRepo
		code       string
		items      []cart.LineItem
		wantAmount decimal.Decimal
		wantErr    error
	}{
		{
			name: "valid code returns discount",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "SAVE10",
					DiscountType: DiscountPercentage,
					Value:        decimal.NewFromInt(10),
					Description:  "10% off",
				},
			},
			code:       "SAVE10",
			items:      oneItem("100"),
			wantAmount: decimal.NewFromInt(10),
		},
		{
			name:    "unknown code returns ErrInvalidCoupon",
			repo:    &mockCouponRepo{err: ErrInvalidCoupon},
			code:    "BOGUS",
			items:   oneItem("50"),
			wantErr: ErrInvalidCoupon,
		},
		{
			name: "min items not met returns ErrInvalidCoupon",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "MIN3",
					DiscountType: DiscountFixed,
					Value:        decimal.NewFromInt(5),
					MinItems:     3,
				},
			},
			code:    "MIN3",
			items:   oneItem("20"),
			wantErr: ErrInvalidCoupon,
		},
		{
			name: "expired coupon",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "OLD",
					DiscountType: DiscountPercentage,
					Value:        decimal.NewFromInt(10),
					ValidUntil:   &pastTime,
				},
			},
			code:    "OLD",
			items:   oneItem("100"),
			wantErr: ErrCouponExpired,
		},
		{
			name: "coupon not yet valid",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "FUTURE",
					DiscountType: DiscountPercentage,
					Value:        decimal.NewFromInt(10),
					ValidFrom:    &futureTime,
				},
			},
			code:    "FUTURE",
			items:   oneItem("100"),
			wantErr: ErrCouponExpired,
		},
		{
			name: "coupon within valid window succeeds",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "WINDOW",
					DiscountType: DiscountPercentage,
					Value:        decimal.NewFromInt(10),
					ValidFrom:    &pastTime,
					ValidUntil:   &futureTime,
				},
			},
			code:       "WINDOW",
			items:      oneItem("100"),
			wantAmount: decimal.NewFromInt(10),
		},
		{
			name: "usage limit reached",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "LIMITED",
					DiscountType: DiscountPercentage,
					Value:        decimal.NewFromInt(10),
					MaxUses:      100,
					Uses:         100,
				},
			},
			code:    "LIMITED",
			items:   oneItem("100"),
			wantErr: ErrCouponUsageLimitReached,
		},
		{
			name: "unlimited uses always succeeds",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "UNLIMITED",
					DiscountType: DiscountFixed,
					Value:        decimal.NewFromInt(5),
					Uses:         9999,
				},
			},
			code:       "UNLIMITED",
			items:      oneItem("100"),
			wantAmount: decimal.NewFromInt(5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.code, tt.items)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.wantAmount.Equal(got.Amount),
				"expected amount %s, got %s", tt.wantAmount, got.Amount)
		})
	}
}

func TestRepoValidator_IncrementUsesCalledOnSuccess(t *testing.T) {
	repo := &mockCouponRepo{
		rule: &Rule{
			Code:         "INC",
			DiscountType: DiscountFixed,
			Value:        decimal.NewFromInt(5),
		},
	}

	v := NewRepoValidator(repo)
	_, err := v.Validate(context.Background(), "INC", oneItem("100"))

	require.NoError(t, err)
	assert.Equal(t, "INC", repo.incrementCode)
}

func TestRepoValidator_IncrementUsesError(t *testing.T) {
	repo := &mockCouponRepo{
		rule: &Rule{
			Code:         "FAIL",
			DiscountType: DiscountFixed,
			Value:        decimal.NewFromInt(5),
		},
		incrementErr: errors.New("db error"),
	}

	v := NewRepoValidator(repo)
	_, err := v.Validate(context.Background(), "FAIL", oneItem("100"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "increment promo code uses")
}

func TestRepoValidator_IneligibleCartDoesNotIncrement(t *testing.T) {
	repo := &mockCouponRepo{
		rule: &Rule{
			Code:         "MIN5",
			DiscountType: DiscountFixed,
			Value:        decimal.NewFromInt(5),
			MinItems:     5,
		},
	}

	v := NewRepoValidator(repo)
	_, err := v.Validate(context.Background(), "MIN5", oneItem("100"))

	require.ErrorIs(t, err, ErrInvalidCoupon)
	assert.Empty(t, repo.incrementCode)
}
