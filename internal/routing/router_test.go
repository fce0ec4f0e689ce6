package routing

import (
	"errors"
	"strings"
	"testing"

	"github.com/sendbridge/core/internal/domain"
)

func TestRouteSMSAfricanDestination(t *testing.T) {
	t.Parallel()

	quote, err := NewRouter().Route(&domain.DispatchRequest{
		Service:     domain.ServiceSMS,
		Destination: "+254712345678",
		Message:     "hello",
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if quote.Provider != ProviderSavanna {
		t.Fatalf("provider = %q, want savanna for a Kenyan number", quote.Provider)
	}
	if len(quote.Fallbacks) != 1 || quote.Fallbacks[0] != ProviderNexora {
		t.Fatalf("fallbacks = %v, want [nexora]", quote.Fallbacks)
	}
	if quote.Region != RegionAfrica {
		t.Fatalf("region = %q, want africa", quote.Region)
	}
	if quote.CallingCode != "254" {
		t.Fatalf("calling code = %q, want 254", quote.CallingCode)
	}
	if quote.TotalPriceCents != 3 {
		t.Fatalf("price = %d, want 3 for one Kenyan segment", quote.TotalPriceCents)
	}
}

func TestRouteSMSGlobalDestination(t *testing.T) {
	t.Parallel()

	quote, err := NewRouter().Route(&domain.DispatchRequest{
		Service:     domain.ServiceSMS,
		Destination: "+14155551234",
		Message:     "hello",
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if quote.Provider != ProviderNexora {
		t.Fatalf("provider = %q, want nexora for a NANP number", quote.Provider)
	}
	if len(quote.Fallbacks) != 1 || quote.Fallbacks[0] != ProviderSavanna {
		t.Fatalf("fallbacks = %v, want [savanna]", quote.Fallbacks)
	}
	if quote.TotalPriceCents != 5 {
		t.Fatalf("price = %d, want 5", quote.TotalPriceCents)
	}
}

func TestRouteSMSMultiSegmentPricing(t *testing.T) {
	t.Parallel()

	quote, err := NewRouter().Route(&domain.DispatchRequest{
		Service:     domain.ServiceSMS,
		Destination: "+254712345678",
		Message:     strings.Repeat("a", 320),
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if quote.Segments != 2 {
		t.Fatalf("segments = %d, want 2", quote.Segments)
	}
	if quote.TotalPriceCents != 2*quote.UnitPriceCents {
		t.Fatalf("total = %d, want price per segment times 2", quote.TotalPriceCents)
	}
}

func TestRouteSMSUnknownCodeUsesRestOfWorldBand(t *testing.T) {
	t.Parallel()

	quote, err := NewRouter().Route(&domain.DispatchRequest{
		Service:     domain.ServiceSMS,
		Destination: "+81312345678",
		Message:     "hello",
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if quote.Provider != ProviderNexora {
		t.Fatalf("provider = %q, want nexora", quote.Provider)
	}
	if quote.TotalPriceCents != restOfWorldBand.PriceCents {
		t.Fatalf("price = %d, want rest-of-world band %d", quote.TotalPriceCents, restOfWorldBand.PriceCents)
	}
}

func TestRouteEmailHasNoFallback(t *testing.T) {
	t.Parallel()

	quote, err := NewRouter().Route(&domain.DispatchRequest{
		Service:     domain.ServiceEmail,
		Destination: "user@example.com",
		Message:     "hello",
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if quote.Provider != ProviderMailbridge {
		t.Fatalf("provider = %q, want mailbridge", quote.Provider)
	}
	if len(quote.Fallbacks) != 0 {
		t.Fatalf("fallbacks = %v, want none for email", quote.Fallbacks)
	}
	if quote.TotalPriceCents != 1 {
		t.Fatalf("price = %d, want 1", quote.TotalPriceCents)
	}
}

func TestRouteAirtimeAppliesFee(t *testing.T) {
	t.Parallel()

	quote, err := NewRouter().Route(&domain.DispatchRequest{
		Service:     domain.ServiceAirtime,
		Destination: "+254712345678",
		AmountCents: 1000,
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if quote.Provider != ProviderTopupgo {
		t.Fatalf("provider = %q, want topupgo", quote.Provider)
	}
	if len(quote.Fallbacks) != 1 || quote.Fallbacks[0] != ProviderAirtouch {
		t.Fatalf("fallbacks = %v, want [airtouch]", quote.Fallbacks)
	}
	// 2% of 1000 cents.
	if quote.TotalPriceCents != 1020 {
		t.Fatalf("price = %d, want 1020", quote.TotalPriceCents)
	}
	if quote.TotalCostCents != 1000 {
		t.Fatalf("cost = %d, want the face value", quote.TotalCostCents)
	}
}

func TestRouteAirtimeFeeFloor(t *testing.T) {
	t.Parallel()

	quote, err := NewRouter().Route(&domain.DispatchRequest{
		Service:     domain.ServiceAirtime,
		Destination: "+254712345678",
		AmountCents: 49,
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if quote.TotalPriceCents != 50 {
		t.Fatalf("price = %d, want 50 (fee floored at one cent)", quote.TotalPriceCents)
	}
}

func TestRouteDataBundle(t *testing.T) {
	t.Parallel()

	quote, err := NewRouter().Route(&domain.DispatchRequest{
		Service:     domain.ServiceData,
		Destination: "+254712345678",
		BundleCode:  "D1GB",
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if quote.Provider != ProviderTopupgo {
		t.Fatalf("provider = %q, want topupgo", quote.Provider)
	}
	// 600 face value + 2% fee.
	if quote.TotalPriceCents != 612 {
		t.Fatalf("price = %d, want 612", quote.TotalPriceCents)
	}
}

func TestRouteDataBundleUnknownCode(t *testing.T) {
	t.Parallel()

	_, err := NewRouter().Route(&domain.DispatchRequest{
		Service:     domain.ServiceData,
		Destination: "+254712345678",
		BundleCode:  "D999TB",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Route() error = %v, want a validation error", err)
	}
}

func TestIsAfricanCallingCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want bool
	}{
		{"20", true},
		{"27", true},
		{"212", true},
		{"254", true},
		{"260", true},
		{"269", true},
		{"1", false},
		{"44", false},
		{"270", false},
		{"290", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isAfricanCallingCode(tt.code); got != tt.want {
			t.Errorf("isAfricanCallingCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
