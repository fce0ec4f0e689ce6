package provider

import (
	"context"
	"fmt"

	"github.com/sendbridge/core/internal/domain"
)

// SendRequest is the uniform upstream payload, regardless of service type.
type SendRequest struct {
	TransactionID string
	Service       domain.ServiceType
	Destination   string
	Message       string
	Subject       string
	SenderID      string
	AmountCents   int64
	BundleCode    string
}

// SendResponse stores provider call metadata for audit and persistence.
type SendResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}

// Provider is the outbound delivery port for one upstream carrier.
type Provider interface {
	Name() string
	Send(ctx context.Context, req SendRequest) (*SendResponse, error)
}

// Registry resolves router provider names to concrete clients.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	if r == nil {
		return nil, fmt.Errorf("provider registry is not initialized")
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return p, nil
}
