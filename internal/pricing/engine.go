// Package pricing computes order totals. Every function is pure: the
// configuration is passed in as a settings snapshot so a single checkout
// prices off one consistent view.
package pricing

import (
	"github.com/anshgupta/storekart-backend/internal/settings"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/money"
	"github.com/shopspring/decimal"
)

// Totals is the frozen monetary breakdown of one checkout. Tax and fee are
// each rounded to two places before summation; the components always add
// up to TotalAmount exactly.
type Totals struct {
	Subtotal       decimal.Decimal
	CouponDiscount decimal.Decimal
	TaxAmount      decimal.Decimal
	PlatformFee    decimal.Decimal
	ShippingCost   decimal.Decimal
	TotalAmount    decimal.Decimal
}

// ComputeTotals derives tax, platform fee and grand total from a subtotal.
// The coupon discount is capped at the subtotal; tax and fee are both
// computed off the discounted subtotal. Shipping is currently always zero
// but stays an explicit component.
func ComputeTotals(subtotal decimal.Decimal, method enums.PaymentMethod, couponDiscount decimal.Decimal, snap settings.Snapshot) (Totals, error) {
	if subtotal.IsNegative() {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must not be negative")
	}
	if couponDiscount.IsNegative() {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "coupon discount must not be negative")
	}

	subtotal = money.Round2(subtotal)
	discount := money.Round2(money.Min(couponDiscount, subtotal))
	discounted := subtotal.Sub(discount)

	tax := money.Percent(discounted, snap.TaxRate)
	fee := money.Percent(discounted, snap.FeePct(method))
	shipping := decimal.Zero

	total := money.Round2(discounted.Add(tax).Add(fee).Add(shipping))

	return Totals{
		Subtotal:       subtotal,
		CouponDiscount: discount,
		TaxAmount:      tax,
		PlatformFee:    fee,
		ShippingCost:   shipping,
		TotalAmount:    total,
	}, nil
}
