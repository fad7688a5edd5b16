package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is an in-memory gateway for dev mode and tests. It stands in
// for a real provider under that provider's name. Intents stay pending until
// Settle is called.
type NoopGateway struct {
	name model.Gateway

	mu      sync.Mutex
	seq     int64
	intents map[string]noopIntent
}

type noopIntent struct {
	amount model.Money
	status adapter.ConfirmationStatus
}

func NewNoopGateway(name model.Gateway) *NoopGateway {
	return &NoopGateway{name: name, intents: make(map[string]noopIntent)}
}

func (g *NoopGateway) Name() model.Gateway { return g.name }

func (g *NoopGateway) Initiate(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error) {
	if err := req.Amount.Validate(); err != nil {
		return adapter.InitiateResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	ref := fmt.Sprintf("noop_%s_%d", g.name, g.seq)
	g.intents[ref] = noopIntent{amount: req.Amount, status: adapter.ConfirmationPending}

	res := adapter.InitiateResult{Reference: ref, ClientSecret: ref + "_secret"}
	if req.SuccessURL != "" {
		sep := "?"
		if strings.Contains(req.SuccessURL, "?") {
			sep = "&"
		}
		res.RedirectURL = req.SuccessURL + sep + "reference=" + url.QueryEscape(ref)
	}
	return res, nil
}

// Settle moves an intent to a final provider-side status.
func (g *NoopGateway) Settle(reference string, status adapter.ConfirmationStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[reference]
	if !ok {
		return domain.ErrNotFound
	}
	in.status = status
	g.intents[reference] = in
	return nil
}

func (g *NoopGateway) Confirm(ctx context.Context, reference string) (adapter.Confirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[reference]
	if !ok {
		return adapter.Confirmation{}, &domain.GatewayError{Provider: string(g.name), Op: "confirm", StatusCode: http.StatusNotFound, RawStatus: "resource_missing"}
	}
	c := adapter.Confirmation{Reference: reference, Status: in.status, RawStatus: "noop_" + string(in.status)}
	if in.status == adapter.ConfirmationSuccess {
		c.Amount = in.amount
	}
	return c, nil
}

// ParseCallback accepts an unsigned {"reference": "...", "status": "..."} body,
// settles the intent and reports it.
func (g *NoopGateway) ParseCallback(ctx context.Context, payload []byte, header http.Header) (adapter.Confirmation, error) {
	var body struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return adapter.Confirmation{}, &domain.GatewayError{Provider: string(g.name), Op: "callback", Err: err}
	}
	if body.Reference == "" || body.Status == "" {
		return adapter.Confirmation{}, domain.ErrIgnoredEvent
	}
	status := adapter.ConfirmationStatus(body.Status)
	switch status {
	case adapter.ConfirmationSuccess, adapter.ConfirmationFailed, adapter.ConfirmationPending:
	default:
		return adapter.Confirmation{}, domain.ErrIgnoredEvent
	}
	if err := g.Settle(body.Reference, status); err != nil {
		// unknown to the provider; let the ledger decide
		return adapter.Confirmation{Reference: body.Reference, Status: status, RawStatus: "noop_" + body.Status}, nil
	}
	return g.Confirm(ctx, body.Reference)
}
