package payment

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"health-insurance-portal/internal/config"
	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/adapter"
)

var _ adapter.GatewayRegistry = (*Registry)(nil)

// Registry holds the configured gateways keyed by name.
type Registry struct {
	gateways map[model.Gateway]adapter.PaymentGateway
}

func NewRegistry(gws ...adapter.PaymentGateway) *Registry {
	r := &Registry{gateways: make(map[model.Gateway]adapter.PaymentGateway, len(gws))}
	for _, g := range gws {
		r.gateways[g.Name()] = g
	}
	return r
}

func (r *Registry) Get(name model.Gateway) (adapter.PaymentGateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, domain.ErrUnsupportedGateway)
	}
	return g, nil
}

// Names lists configured gateways in a stable order.
func (r *Registry) Names() []model.Gateway {
	out := make([]model.Gateway, 0, len(r.gateways))
	for n := range r.gateways {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewRegistryFromConfig builds a gateway per configured secret key. In dev
// mode a missing key is replaced by a NoopGateway under the same name.
func NewRegistryFromConfig(cfg config.PaymentConfig, dev bool, logger *zerolog.Logger) (*Registry, error) {
	var gws []adapter.PaymentGateway

	switch {
	case cfg.Stripe.SecretKey != "":
		sg, err := NewStripeGateway(cfg.Stripe, cfg.HTTPTimeout, logger)
		if err != nil {
			return nil, err
		}
		gws = append(gws, sg)
	case dev:
		logger.Warn().Msg("stripe not configured; using noop gateway")
		gws = append(gws, NewNoopGateway(model.GatewayStripe))
	}

	switch {
	case cfg.Paystack.SecretKey != "":
		pg, err := NewPaystackGateway(cfg.Paystack, cfg.HTTPTimeout, logger)
		if err != nil {
			return nil, err
		}
		gws = append(gws, pg)
	case dev:
		logger.Warn().Msg("paystack not configured; using noop gateway")
		gws = append(gws, NewNoopGateway(model.GatewayPaystack))
	}

	if len(gws) == 0 {
		return nil, fmt.Errorf("no payment gateway configured: %w", domain.ErrUnsupportedGateway)
	}
	return NewRegistry(gws...), nil
}
