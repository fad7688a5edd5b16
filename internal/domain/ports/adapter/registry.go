package adapter

import "health-insurance-portal/internal/domain/model"

// GatewayRegistry resolves a configured provider by name.
// Unknown or unconfigured names yield domain.ErrUnsupportedGateway.
type GatewayRegistry interface {
	Get(name model.Gateway) (PaymentGateway, error)
}
