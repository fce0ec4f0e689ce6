package routing

import "strings"

// Region buckets destinations for provider selection.
type Region string

const (
	RegionAfrica Region = "africa"
	RegionGlobal Region = "global"
)

// priceBand is a per-unit price/cost pair in cents.
type priceBand struct {
	CostCents  int64
	PriceCents int64
}

// smsPriceTable maps international calling codes to SMS price bands. Longest
// matching prefix wins; restOfWorldBand applies when nothing matches.
var smsPriceTable = map[string]priceBand{
	"20":  {CostCents: 2, PriceCents: 4}, // Egypt
	"212": {CostCents: 2, PriceCents: 4}, // Morocco
	"233": {CostCents: 2, PriceCents: 4}, // Ghana
	"234": {CostCents: 1, PriceCents: 3}, // Nigeria
	"250": {CostCents: 2, PriceCents: 4}, // Rwanda
	"254": {CostCents: 1, PriceCents: 3}, // Kenya
	"255": {CostCents: 2, PriceCents: 4}, // Tanzania
	"256": {CostCents: 2, PriceCents: 4}, // Uganda
	"27":  {CostCents: 1, PriceCents: 3}, // South Africa
	"1":   {CostCents: 2, PriceCents: 5}, // NANP
	"44":  {CostCents: 2, PriceCents: 5}, // UK
	"49":  {CostCents: 3, PriceCents: 6}, // Germany
	"91":  {CostCents: 2, PriceCents: 4}, // India
}

var restOfWorldBand = priceBand{CostCents: 4, PriceCents: 8}

// isAfricanCallingCode reports whether a calling code routes through the
// Africa-optimized provider: 20, 27, and the 21x-26x blocks.
func isAfricanCallingCode(code string) bool {
	if code == "" {
		return false
	}
	if code == "27" || code == "20" {
		return true
	}
	if len(code) == 3 && code[0] == '2' {
		switch code[1] {
		case '1', '2', '3', '4', '5', '6':
			return true
		}
	}
	return false
}

// callingCode extracts the longest known calling code from an E.164 number,
// falling back to the first digit when nothing matches the table.
func callingCode(destination string) string {
	digits := strings.TrimPrefix(destination, "+")
	for length := 3; length >= 1; length-- {
		if len(digits) < length {
			continue
		}
		prefix := digits[:length]
		if _, ok := smsPriceTable[prefix]; ok {
			return prefix
		}
		if isAfricanCallingCode(prefix) {
			return prefix
		}
	}
	if digits == "" {
		return ""
	}
	return digits[:1]
}

func smsBand(code string) priceBand {
	if band, ok := smsPriceTable[code]; ok {
		return band
	}
	return restOfWorldBand
}

// Email is priced flat per message.
var emailBand = priceBand{CostCents: 0, PriceCents: 1}

// Airtime and data are priced as face value plus a service fee in basis
// points, floored at one cent.
const topupFeeBasisPoints = 200

func topupFee(amountCents int64) int64 {
	fee := amountCents * topupFeeBasisPoints / 10_000
	if fee < 1 {
		fee = 1
	}
	return fee
}

// dataBundles maps bundle codes to face-value cents.
var dataBundles = map[string]int64{
	"D100MB":  100,
	"D500MB":  350,
	"D1GB":    600,
	"D5GB":    2500,
	"D10GB":   4500,
	"WKLY1GB": 500,
	"MTH10GB": 4000,
}

// BundlePrice returns the face value for a data bundle code.
func BundlePrice(code string) (int64, bool) {
	price, ok := dataBundles[strings.ToUpper(strings.TrimSpace(code))]
	return price, ok
}
