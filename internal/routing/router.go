package routing

import (
	"fmt"

	"github.com/sendbridge/core/internal/domain"
)

// Provider names known to the router. They key the dispatcher's provider
// registry; the concrete network clients live in internal/provider.
const (
	ProviderSavanna    = "savanna"    // Africa-optimized SMS carrier
	ProviderNexora     = "nexora"     // general international SMS carrier
	ProviderMailbridge = "mailbridge" // transactional email
	ProviderTopupgo    = "topupgo"    // airtime and data bundles
	ProviderAirtouch   = "airtouch"   // airtime/data fallback aggregator
)

// Quote is the routing decision for one dispatch: the chosen provider, the
// ordered fallback list, and the computed cost/price.
type Quote struct {
	Provider        string
	Fallbacks       []string
	Region          Region
	CallingCode     string
	Segments        int
	UnitCostCents   int64
	UnitPriceCents  int64
	TotalCostCents  int64
	TotalPriceCents int64
}

// Router selects providers and prices requests from static tables. It never
// performs network calls.
type Router struct{}

func NewRouter() *Router {
	return &Router{}
}

// Route picks the primary provider, fallback order, and price for a request.
// The request must already be validated.
func (r *Router) Route(req *domain.DispatchRequest) (*Quote, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is required", domain.ErrValidation)
	}

	switch req.Service {
	case domain.ServiceSMS:
		return r.routeSMS(req), nil
	case domain.ServiceEmail:
		return r.routeEmail(req), nil
	case domain.ServiceAirtime:
		return r.routeTopup(req, req.AmountCents), nil
	case domain.ServiceData:
		price, ok := BundlePrice(req.BundleCode)
		if !ok {
			return nil, fmt.Errorf("%w: unknown bundle code %q", domain.ErrValidation, req.BundleCode)
		}
		return r.routeTopup(req, price), nil
	default:
		return nil, fmt.Errorf("%w: unroutable service %q", domain.ErrValidation, req.Service)
	}
}

func (r *Router) routeSMS(req *domain.DispatchRequest) *Quote {
	code := callingCode(req.Destination)
	band := smsBand(code)
	segments := Segments(req.Message)

	region := RegionGlobal
	provider := ProviderNexora
	fallbacks := []string{ProviderSavanna}
	if isAfricanCallingCode(code) {
		region = RegionAfrica
		provider = ProviderSavanna
		fallbacks = []string{ProviderNexora}
	}

	return &Quote{
		Provider:        provider,
		Fallbacks:       fallbacks,
		Region:          region,
		CallingCode:     code,
		Segments:        segments,
		UnitCostCents:   band.CostCents,
		UnitPriceCents:  band.PriceCents,
		TotalCostCents:  band.CostCents * int64(segments),
		TotalPriceCents: band.PriceCents * int64(segments),
	}
}

func (r *Router) routeEmail(req *domain.DispatchRequest) *Quote {
	return &Quote{
		Provider:        ProviderMailbridge,
		Fallbacks:       nil,
		Region:          RegionGlobal,
		Segments:        1,
		UnitCostCents:   emailBand.CostCents,
		UnitPriceCents:  emailBand.PriceCents,
		TotalCostCents:  emailBand.CostCents,
		TotalPriceCents: emailBand.PriceCents,
	}
}

func (r *Router) routeTopup(req *domain.DispatchRequest, faceValueCents int64) *Quote {
	code := callingCode(req.Destination)
	region := RegionGlobal
	if isAfricanCallingCode(code) {
		region = RegionAfrica
	}

	fee := topupFee(faceValueCents)
	return &Quote{
		Provider:        ProviderTopupgo,
		Fallbacks:       []string{ProviderAirtouch},
		Region:          region,
		CallingCode:     code,
		Segments:        1,
		UnitCostCents:   faceValueCents,
		UnitPriceCents:  faceValueCents + fee,
		TotalCostCents:  faceValueCents,
		TotalPriceCents: faceValueCents + fee,
	}
}
