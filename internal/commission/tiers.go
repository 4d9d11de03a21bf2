package commission

import "github.com/shopspring/decimal"

// Tier is one price band of the commission schedule. Fees are per unit and
// constant within the band.
type Tier struct {
	Min            decimal.Decimal
	Max            decimal.Decimal
	GatewayFee     decimal.Decimal
	PlatformFee    decimal.Decimal
	BuyerFee       decimal.Decimal
	SellerFee      decimal.Decimal
	PlatformProfit decimal.Decimal
}

func tier(min, max, gateway, platform, buyer, seller, profit string) Tier {
	return Tier{
		Min:            decimal.RequireFromString(min),
		Max:            decimal.RequireFromString(max),
		GatewayFee:     decimal.RequireFromString(gateway),
		PlatformFee:    decimal.RequireFromString(platform),
		BuyerFee:       decimal.RequireFromString(buyer),
		SellerFee:      decimal.RequireFromString(seller),
		PlatformProfit: decimal.RequireFromString(profit),
	}
}

// defaultTiers is ordered by price. Bands are contiguous at cent precision so
// every positive price falls in exactly one band; prices above the last band
// use the last band.
var defaultTiers = []Tier{
	tier("0.01", "49.99", "2", "5", "2.5", "2.5", "3"),
	tier("50", "100", "5", "15", "7.5", "7.5", "10"),
	tier("100.01", "500", "7", "25", "12.5", "12.5", "18"),
	tier("500.01", "1000", "13", "40", "20", "20", "27"),
	tier("1000.01", "1500", "23", "60", "30", "30", "37"),
	tier("1500.01", "2500", "33", "80", "40", "40", "47"),
	tier("2500.01", "3500", "53", "110", "55", "55", "57"),
	tier("3500.01", "5000", "57", "150", "75", "75", "93"),
	tier("5000.01", "7500", "78", "200", "100", "100", "122"),
	tier("7500.01", "10000", "90", "260", "130", "130", "170"),
	tier("10000.01", "15000", "100", "350", "175", "175", "250"),
	tier("15000.01", "20000", "105", "450", "225", "225", "345"),
	tier("20000.01", "35000", "108", "600", "300", "300", "492"),
	tier("35000.01", "50000", "108", "800", "400", "400", "692"),
	tier("50000.01", "250000", "108", "1200", "600", "600", "1092"),
}

// DefaultTiers returns a copy of the built-in schedule.
func DefaultTiers() []Tier {
	out := make([]Tier, len(defaultTiers))
	copy(out, defaultTiers)
	return out
}
