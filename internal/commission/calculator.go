package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Breakdown is the per-unit and quantity-scaled split of one order line.
type Breakdown struct {
	Price          decimal.Decimal
	Quantity       int
	BuyerFee       decimal.Decimal
	SellerFee      decimal.Decimal
	PlatformFee    decimal.Decimal
	PlatformProfit decimal.Decimal
	GatewayFee     decimal.Decimal
	BuyerTotal     decimal.Decimal
	SellerPayout   decimal.Decimal
	Totals         Totals
}

// Totals holds every per-unit figure multiplied by quantity.
type Totals struct {
	TotalProductPrice   decimal.Decimal
	TotalBuyerFee       decimal.Decimal
	TotalSellerFee      decimal.Decimal
	TotalPlatformFee    decimal.Decimal
	TotalPlatformProfit decimal.Decimal
	TotalGatewayFee     decimal.Decimal
	TotalBuyerCost      decimal.Decimal
	TotalSellerPayout   decimal.Decimal
}

// Calculator maps a unit price onto a tier schedule. It holds no mutable state.
type Calculator struct {
	tiers []Tier
}

// NewCalculator builds a calculator over tiers, which must be non-empty and
// ordered by ascending Min.
func NewCalculator(tiers []Tier) (*Calculator, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one commission tier is required")
	}
	for i := range tiers {
		if tiers[i].Max.LessThan(tiers[i].Min) {
			return nil, fmt.Errorf("tier %d max below min", i)
		}
		if i > 0 && !tiers[i].Min.GreaterThan(tiers[i-1].Max) {
			return nil, fmt.Errorf("tier %d overlaps tier %d", i, i-1)
		}
	}
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return &Calculator{tiers: out}, nil
}

// Default returns a calculator over the built-in schedule.
func Default() *Calculator {
	return &Calculator{tiers: DefaultTiers()}
}

// TierFor returns the first band containing price; prices above every band
// saturate to the last one and prices below every band use the first.
func (c *Calculator) TierFor(price decimal.Decimal) Tier {
	for _, t := range c.tiers {
		if price.GreaterThanOrEqual(t.Min) && price.LessThanOrEqual(t.Max) {
			return t
		}
	}
	if price.LessThan(c.tiers[0].Min) {
		return c.tiers[0]
	}
	return c.tiers[len(c.tiers)-1]
}

// Calculate splits price across buyer, seller, platform and gateway. Quantity
// below 1 is treated as 1.
func (c *Calculator) Calculate(price decimal.Decimal, quantity int) Breakdown {
	if quantity < 1 {
		quantity = 1
	}
	t := c.TierFor(price)
	qty := decimal.NewFromInt(int64(quantity))

	b := Breakdown{
		Price:          price,
		Quantity:       quantity,
		BuyerFee:       t.BuyerFee,
		SellerFee:      t.SellerFee,
		PlatformFee:    t.PlatformFee,
		PlatformProfit: t.PlatformProfit,
		GatewayFee:     t.GatewayFee,
		BuyerTotal:     price.Add(t.BuyerFee),
		SellerPayout:   price.Sub(t.SellerFee),
	}
	b.Totals = Totals{
		TotalProductPrice:   price.Mul(qty),
		TotalBuyerFee:       t.BuyerFee.Mul(qty),
		TotalSellerFee:      t.SellerFee.Mul(qty),
		TotalPlatformFee:    t.PlatformFee.Mul(qty),
		TotalPlatformProfit: t.PlatformProfit.Mul(qty),
		TotalGatewayFee:     t.GatewayFee.Mul(qty),
		TotalBuyerCost:      b.BuyerTotal.Mul(qty),
		TotalSellerPayout:   b.SellerPayout.Mul(qty),
	}
	return b
}

// CollectionUnits rounds a buyer charge up to whole currency units so the
// platform never collects less than the computed cost.
func CollectionUnits(amount decimal.Decimal) int64 {
	return amount.Ceil().IntPart()
}

// PayoutUnits rounds a seller payout down to whole currency units so the
// platform never pays out more than the computed payout.
func PayoutUnits(amount decimal.Decimal) int64 {
	if amount.IsNegative() {
		return 0
	}
	return amount.Floor().IntPart()
}
