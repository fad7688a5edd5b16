package adapter

import (
	"context"
	"net/http"

	"health-insurance-portal/internal/domain/model"
)

// ConfirmationStatus is the gateway's verdict mapped onto our vocabulary.
type ConfirmationStatus string

const (
	ConfirmationSuccess ConfirmationStatus = "success"
	ConfirmationFailed  ConfirmationStatus = "failed"
	ConfirmationPending ConfirmationStatus = "pending" // not settled yet; never written to the ledger
)

type Customer struct {
	UserID string
	Email  string
}

// InitiateRequest carries everything a provider needs to create a charge.
type InitiateRequest struct {
	Amount      model.Money
	Customer    Customer
	SuccessURL  string
	CancelURL   string
	Description string
	Metadata    map[string]string
}

// InitiateResult holds the provider reference plus either a hosted page URL
// or a client secret for an embedded payment form.
type InitiateResult struct {
	Reference    string
	RedirectURL  string
	ClientSecret string
}

// Confirmation is a provider-verified statement about a reference.
type Confirmation struct {
	Reference string
	Status    ConfirmationStatus
	Amount    model.Money
	RawStatus string
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() model.Gateway

	// Initiate creates the charge at the provider. No ledger row exists yet.
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	// Confirm asks the provider for the current state of a reference.
	Confirm(ctx context.Context, reference string) (Confirmation, error)
	// ParseCallback authenticates an inbound webhook and extracts the confirmation.
	// Events that carry no payment verdict return domain.ErrIgnoredEvent.
	ParseCallback(ctx context.Context, payload []byte, header http.Header) (Confirmation, error)
}
