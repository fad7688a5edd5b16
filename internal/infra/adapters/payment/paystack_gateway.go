// File: internal/infra/adapters/payment/paystack_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"health-insurance-portal/internal/config"
	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PaystackGateway)(nil)

// PaystackGateway implements adapter.PaymentGateway using the Paystack
// transaction API. References are generated locally (ULID) and sent to
// Paystack on initialize.
type PaystackGateway struct {
	cfg    config.PaystackConfig
	api    *apiClient
	newRef func() string
}

func NewPaystackGateway(cfg config.PaystackConfig, timeout time.Duration, logger *zerolog.Logger) (*PaystackGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("paystack secret key empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid paystack base url: %w", err)
	}
	return &PaystackGateway{
		cfg:    cfg,
		api:    newAPIClient(string(model.GatewayPaystack), timeout, logger),
		newRef: func() string { return "PSK-" + ulid.Make().String() },
	}, nil
}

func (p *PaystackGateway) Name() model.Gateway { return model.GatewayPaystack }

func (p *PaystackGateway) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

// paystackEnvelope is the common {status, message, data} response wrapper.
type paystackEnvelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type paystackInit struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackTxn struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"` // success | failed | abandoned | reversed | ongoing | pending | ...
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
}

func (p *PaystackGateway) Initiate(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error) {
	if err := req.Amount.Validate(); err != nil {
		return adapter.InitiateResult{}, err
	}
	if req.Customer.Email == "" {
		return adapter.InitiateResult{}, &domain.ValidationError{Field: "email", Reason: "is required by paystack"}
	}
	reference := p.newRef()
	meta := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if req.CancelURL != "" {
		meta["cancel_action"] = req.CancelURL
	}
	payload := map[string]any{
		"email":     req.Customer.Email,
		"amount":    req.Amount.Amount,
		"currency":  req.Amount.Currency,
		"reference": reference,
		"metadata":  meta,
	}
	if req.SuccessURL != "" {
		payload["callback_url"] = req.SuccessURL
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return adapter.InitiateResult{}, err
	}

	var out paystackEnvelope[paystackInit]
	err = p.api.call(ctx, "initiate", func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/transaction/initialize"), bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	}, paystackMessage, &out)
	if err != nil {
		return adapter.InitiateResult{}, err
	}
	if !out.Status || out.Data.AuthorizationURL == "" {
		return adapter.InitiateResult{}, &domain.GatewayError{Provider: "paystack", Op: "initiate", RawStatus: out.Message, Err: errors.New("initialize rejected")}
	}
	if out.Data.Reference != "" {
		reference = out.Data.Reference
	}
	return adapter.InitiateResult{Reference: reference, RedirectURL: out.Data.AuthorizationURL}, nil
}

func (p *PaystackGateway) Confirm(ctx context.Context, reference string) (adapter.Confirmation, error) {
	var out paystackEnvelope[paystackTxn]
	err := p.api.call(ctx, "confirm", func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/transaction/verify/"+url.PathEscape(reference)), nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
		return r, nil
	}, paystackMessage, &out)
	if err != nil {
		return adapter.Confirmation{}, err
	}
	if !out.Status {
		return adapter.Confirmation{}, &domain.GatewayError{Provider: "paystack", Op: "confirm", RawStatus: out.Message, Err: errors.New("verify rejected")}
	}

	c := adapter.Confirmation{
		Reference: firstNonEmpty(out.Data.Reference, reference),
		Status:    adapter.ConfirmationPending,
		RawStatus: out.Data.Status,
	}
	switch out.Data.Status {
	case "success":
		c.Status = adapter.ConfirmationSuccess
		if out.Data.Currency != "" {
			c.Amount = model.NewMoney(out.Data.Amount, out.Data.Currency)
		}
	case "failed", "reversed":
		c.Status = adapter.ConfirmationFailed
	}
	// "abandoned" stays pending: the reference can still be paid
	return c, nil
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// ParseCallback authenticates x-paystack-signature, then asks Paystack itself
// for the verdict instead of trusting the event body.
func (p *PaystackGateway) ParseCallback(ctx context.Context, payload []byte, header http.Header) (adapter.Confirmation, error) {
	if err := VerifyPaystackSignature(payload, header.Get("x-paystack-signature"), p.cfg.SecretKey); err != nil {
		return adapter.Confirmation{}, &domain.GatewayError{Provider: "paystack", Op: "callback", Err: err}
	}
	var ev paystackEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return adapter.Confirmation{}, &domain.GatewayError{Provider: "paystack", Op: "callback", Err: fmt.Errorf("decode event: %w", err)}
	}
	if !strings.HasPrefix(ev.Event, "charge.") {
		return adapter.Confirmation{}, domain.ErrIgnoredEvent
	}
	if ev.Data.Reference == "" {
		return adapter.Confirmation{}, &domain.GatewayError{Provider: "paystack", Op: "callback", RawStatus: ev.Event, Err: errors.New("reference missing")}
	}
	return p.Confirm(ctx, ev.Data.Reference)
}

func paystackMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Message
}
