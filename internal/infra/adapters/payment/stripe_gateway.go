// File: internal/infra/adapters/payment/stripe_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"

	"health-insurance-portal/internal/config"
	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/adapter"
	"health-insurance-portal/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

const (
	StripeModePaymentIntent   = "payment_intent"
	StripeModeCheckoutSession = "checkout_session"
)

// StripeWebhookTolerance bounds the age of a signed webhook timestamp.
const StripeWebhookTolerance = 5 * time.Minute

// StripeGateway implements adapter.PaymentGateway with the stripe-go clients.
// The SDK's own network retries are off; apiClient.retry owns the policy.
type StripeGateway struct {
	cfg      config.StripeConfig
	api      *apiClient
	intents  paymentintent.Client
	sessions session.Client
	newKey   func() string
}

func NewStripeGateway(cfg config.StripeConfig, timeout time.Duration, logger *zerolog.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = stripe.APIURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid stripe base url: %w", err)
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = StripeModeCheckoutSession
	case StripeModePaymentIntent, StripeModeCheckoutSession:
	default:
		return nil, fmt.Errorf("unknown stripe mode %q", cfg.Mode)
	}

	api := newAPIClient(string(model.GatewayStripe), timeout, logger)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(cfg.BaseURL),
		HTTPClient:        api.http,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     stripeLogger{log: api.log},
	})
	return &StripeGateway{
		cfg:      cfg,
		api:      api,
		intents:  paymentintent.Client{B: backend, Key: cfg.SecretKey},
		sessions: session.Client{B: backend, Key: cfg.SecretKey},
		newKey:   uuid.NewString,
	}, nil
}

func (s *StripeGateway) Name() model.Gateway { return model.GatewayStripe }

func (s *StripeGateway) Initiate(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error) {
	if err := req.Amount.Validate(); err != nil {
		return adapter.InitiateResult{}, err
	}
	currency := strings.ToLower(req.Amount.Currency)

	if s.cfg.Mode == StripeModePaymentIntent {
		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(req.Amount.Amount),
			Currency: stripe.String(currency),
			AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
				Enabled: stripe.Bool(true),
			},
		}
		if req.Description != "" {
			params.Description = stripe.String(req.Description)
		}
		if req.Customer.Email != "" {
			params.ReceiptEmail = stripe.String(req.Customer.Email)
		}
		for k, v := range req.Metadata {
			params.AddMetadata(k, v)
		}
		params.Context = ctx
		params.SetIdempotencyKey(s.newKey())

		var pi *stripe.PaymentIntent
		err := s.do(ctx, "initiate", func() (err error) {
			pi, err = s.intents.New(params)
			return err
		})
		if err != nil {
			return adapter.InitiateResult{}, err
		}
		if pi.ID == "" || pi.ClientSecret == "" {
			return adapter.InitiateResult{}, &domain.GatewayError{Provider: "stripe", Op: "initiate", RawStatus: string(pi.Status), Err: errors.New("payment intent without id or client secret")}
		}
		return adapter.InitiateResult{Reference: pi.ID, ClientSecret: pi.ClientSecret}, nil
	}

	if req.SuccessURL == "" {
		return adapter.InitiateResult{}, &domain.ValidationError{Field: "success_url", Reason: "is required for checkout sessions"}
	}
	cancel := firstNonEmpty(req.CancelURL, req.SuccessURL)
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(withSessionReference(req.SuccessURL)),
		CancelURL:  stripe.String(withSessionReference(cancel)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(req.Amount.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(firstNonEmpty(req.Description, "Health insurance payment")),
				},
			},
		}},
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	if req.Customer.UserID != "" {
		params.ClientReferenceID = stripe.String(req.Customer.UserID)
	}
	if len(req.Metadata) > 0 {
		intentMeta := make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.AddMetadata(k, v)
			intentMeta[k] = v
		}
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: intentMeta}
	}
	params.Context = ctx
	params.SetIdempotencyKey(s.newKey())

	var cs *stripe.CheckoutSession
	err := s.do(ctx, "initiate", func() (err error) {
		cs, err = s.sessions.New(params)
		return err
	})
	if err != nil {
		return adapter.InitiateResult{}, err
	}
	if cs.ID == "" || cs.URL == "" {
		return adapter.InitiateResult{}, &domain.GatewayError{Provider: "stripe", Op: "initiate", RawStatus: string(cs.Status), Err: errors.New("checkout session without id or url")}
	}
	return adapter.InitiateResult{Reference: cs.ID, RedirectURL: cs.URL}, nil
}

// Confirm retrieves a checkout session (cs_...) or payment intent (pi_...).
func (s *StripeGateway) Confirm(ctx context.Context, reference string) (adapter.Confirmation, error) {
	if strings.HasPrefix(reference, "cs_") {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		var cs *stripe.CheckoutSession
		err := s.do(ctx, "confirm", func() (err error) {
			cs, err = s.sessions.Get(reference, params)
			return err
		})
		if err != nil {
			return adapter.Confirmation{}, err
		}
		return sessionConfirmation(cs, string(cs.Status)+"/"+string(cs.PaymentStatus)), nil
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	var pi *stripe.PaymentIntent
	err := s.do(ctx, "confirm", func() (err error) {
		pi, err = s.intents.Get(reference, params)
		return err
	})
	if err != nil {
		return adapter.Confirmation{}, err
	}
	return intentConfirmation(pi, string(pi.Status)), nil
}

// ParseCallback authenticates the Stripe-Signature header before looking at the body.
func (s *StripeGateway) ParseCallback(ctx context.Context, payload []byte, header http.Header) (adapter.Confirmation, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), s.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                StripeWebhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isStripeSignatureError(err) {
			err = fmt.Errorf("%w: %w", domain.ErrSignature, err)
		} else {
			err = fmt.Errorf("decode event: %w", err)
		}
		return adapter.Confirmation{}, &domain.GatewayError{Provider: "stripe", Op: "callback", Err: err}
	}
	eventType := string(ev.Type)
	if eventType == "" {
		return adapter.Confirmation{}, &domain.GatewayError{Provider: "stripe", Op: "callback", Err: errors.New("decode event: event type missing")}
	}
	var raw json.RawMessage
	if ev.Data != nil {
		raw = ev.Data.Raw
	}

	switch {
	case strings.HasPrefix(eventType, "payment_intent.") && s.cfg.Mode == StripeModePaymentIntent:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil || pi.ID == "" {
			return adapter.Confirmation{}, malformedObject(eventType, err)
		}
		switch eventType {
		case "payment_intent.succeeded":
			pi.Status = stripe.PaymentIntentStatusSucceeded
		case "payment_intent.canceled":
			pi.Status = stripe.PaymentIntentStatusCanceled
		case "payment_intent.payment_failed":
			// a declined attempt leaves the intent open for another try
			pi.Status = stripe.PaymentIntentStatusRequiresPaymentMethod
		default:
			return adapter.Confirmation{}, domain.ErrIgnoredEvent
		}
		return intentConfirmation(&pi, eventType), nil

	case strings.HasPrefix(eventType, "checkout.session.") && s.cfg.Mode == StripeModeCheckoutSession:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(raw, &cs); err != nil || cs.ID == "" {
			return adapter.Confirmation{}, malformedObject(eventType, err)
		}
		switch eventType {
		case "checkout.session.completed":
			// async methods complete the session before the money arrives
		case "checkout.session.async_payment_succeeded":
			cs.PaymentStatus = stripe.CheckoutSessionPaymentStatusPaid
		case "checkout.session.expired", "checkout.session.async_payment_failed":
			cs.Status = stripe.CheckoutSessionStatusExpired
			cs.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid
		default:
			return adapter.Confirmation{}, domain.ErrIgnoredEvent
		}
		return sessionConfirmation(&cs, eventType), nil
	}
	return adapter.Confirmation{}, domain.ErrIgnoredEvent
}

func isStripeSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld) ||
		errors.Is(err, webhook.ErrInvalidHeader)
}

func intentConfirmation(pi *stripe.PaymentIntent, raw string) adapter.Confirmation {
	c := adapter.Confirmation{
		Reference: pi.ID,
		Status:    adapter.ConfirmationPending,
		RawStatus: raw,
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		c.Status = adapter.ConfirmationSuccess
		amt := pi.AmountReceived
		if amt == 0 {
			amt = pi.Amount
		}
		if pi.Currency != "" {
			c.Amount = model.NewMoney(amt, string(pi.Currency))
		}
	case stripe.PaymentIntentStatusCanceled:
		c.Status = adapter.ConfirmationFailed
	}
	return c
}

func sessionConfirmation(cs *stripe.CheckoutSession, raw string) adapter.Confirmation {
	c := adapter.Confirmation{
		Reference: cs.ID,
		Status:    adapter.ConfirmationPending,
		RawStatus: raw,
	}
	switch {
	case cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		c.Status = adapter.ConfirmationSuccess
		if cs.Currency != "" {
			c.Amount = model.NewMoney(cs.AmountTotal, string(cs.Currency))
		}
	case cs.Status == stripe.CheckoutSessionStatusExpired:
		c.Status = adapter.ConfirmationFailed
	}
	return c
}

func malformedObject(eventType string, err error) error {
	if err == nil {
		err = errors.New("object id missing")
	}
	return &domain.GatewayError{Provider: "stripe", Op: "callback", RawStatus: eventType, Err: err}
}

// withSessionReference appends Stripe's session-id template so the browser
// returns to the verify endpoint with the reference it needs.
func withSessionReference(u string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "reference={CHECKOUT_SESSION_ID}"
}

// do runs one SDK call under the shared retry policy and measures every attempt.
func (s *StripeGateway) do(ctx context.Context, op string, call func() error) error {
	return s.api.retry(ctx, op, func(int) error {
		start := time.Now()
		err := call()
		if err == nil {
			metrics.ObserveGatewayCall(s.api.provider, op, http.StatusOK, time.Since(start))
			return nil
		}
		gwErr := stripeGatewayError(op, err)
		metrics.ObserveGatewayCall(s.api.provider, op, gwErr.StatusCode, time.Since(start))
		return gwErr
	})
}

func stripeGatewayError(op string, err error) *domain.GatewayError {
	gwErr := &domain.GatewayError{Provider: "stripe", Op: op, Err: err}
	var se *stripe.Error
	if errors.As(err, &se) {
		gwErr.StatusCode = se.HTTPStatusCode
		gwErr.RawStatus = firstNonEmpty(string(se.Code), string(se.Type))
	}
	return gwErr
}

// stripeLogger routes SDK logs into the gateway's zerolog logger.
type stripeLogger struct {
	log *zerolog.Logger
}

func (l stripeLogger) Debugf(format string, v ...interface{}) { l.log.Debug().Msgf(format, v...) }
func (l stripeLogger) Infof(format string, v ...interface{})  { l.log.Debug().Msgf(format, v...) }
func (l stripeLogger) Warnf(format string, v ...interface{})  { l.log.Warn().Msgf(format, v...) }
func (l stripeLogger) Errorf(format string, v ...interface{}) { l.log.Error().Msgf(format, v...) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
