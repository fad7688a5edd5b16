package model

import (
	"strings"
	"time"

	"health-insurance-portal/internal/domain"
)

// Gateway names an external payment processor.
type Gateway string

const (
	GatewayStripe   Gateway = "stripe"
	GatewayPaystack Gateway = "paystack"
)

// ParseGateway accepts any casing ("Stripe", "PAYSTACK").
func ParseGateway(s string) (Gateway, error) {
	switch g := Gateway(strings.ToLower(strings.TrimSpace(s))); g {
	case GatewayStripe, GatewayPaystack:
		return g, nil
	default:
		return "", domain.ErrUnsupportedGateway
	}
}

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"  // created before redirecting to the gateway
	TransactionStatusSuccess  TransactionStatus = "success"  // gateway confirmed payment
	TransactionStatusFailed   TransactionStatus = "failed"   // gateway confirmed failure/cancel
	TransactionStatusRefunded TransactionStatus = "refunded" // set out-of-band by an administrator only
)

// PayableKind is the type of entity a transaction pays for.
type PayableKind string

const (
	PayableQuote        PayableKind = "quote"
	PayableSubscription PayableKind = "subscription"
)

func ParsePayableKind(s string) (PayableKind, error) {
	switch k := PayableKind(strings.ToLower(strings.TrimSpace(s))); k {
	case PayableQuote, PayableSubscription:
		return k, nil
	default:
		return "", &domain.ValidationError{Field: "payable_type", Reason: "must be quote or subscription"}
	}
}

// PayableRef points at a Quote or UserSubscription.
type PayableRef struct {
	Kind PayableKind `json:"kind"`
	ID   string      `json:"id"`
}

func (p PayableRef) String() string { return string(p.Kind) + ":" + p.ID }

// Transaction is one payment attempt in the ledger. Rows are never deleted.
type Transaction struct {
	ID            string            `json:"id"`        // UUID
	Reference     string            `json:"reference"` // gateway transaction id, unique
	UserID        string            `json:"user_id"`
	Payable       *PayableRef       `json:"payable,omitempty"`
	Amount        Money             `json:"amount"` // immutable after creation
	Gateway       Gateway           `json:"gateway"`
	Status        TransactionStatus `json:"status"`
	GatewayStatus string            `json:"gateway_status,omitempty"` // raw provider status seen at resolution
	Meta          map[string]string `json:"meta,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	ResolvedAt    *time.Time        `json:"resolved_at,omitempty"`
}

// NewPendingTransaction validates inputs and builds a pending ledger row.
func NewPendingTransaction(id, reference, userID string, payable *PayableRef, amount Money, gw Gateway, meta map[string]string) (*Transaction, error) {
	if id == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if strings.TrimSpace(reference) == "" {
		return nil, &domain.ValidationError{Field: "reference", Reason: "is required"}
	}
	if _, err := ParseGateway(string(gw)); err != nil {
		return nil, err
	}
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Transaction{
		ID:        id,
		Reference: reference,
		UserID:    userID,
		Payable:   payable,
		Amount:    NewMoney(amount.Amount, amount.Currency),
		Gateway:   gw,
		Status:    TransactionStatusPending,
		Meta:      meta,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed || s == TransactionStatusRefunded
}

func (t *Transaction) IsTerminal() bool { return t.Status.IsTerminal() }

// CanTransition reports whether the reconciliation core may move the
// transaction to `to`. Only pending -> success and pending -> failed exist.
func (t *Transaction) CanTransition(to TransactionStatus) bool {
	if t.Status != TransactionStatusPending {
		return false
	}
	return to == TransactionStatusSuccess || to == TransactionStatusFailed
}

// Transition applies a state change in memory, enforcing CanTransition.
func (t *Transaction) Transition(to TransactionStatus, rawStatus string, at time.Time) error {
	if !t.CanTransition(to) {
		return &domain.DuplicateTransitionError{Reference: t.Reference, Current: string(t.Status), Attempted: string(to)}
	}
	t.Status = to
	t.GatewayStatus = rawStatus
	t.UpdatedAt = at
	t.ResolvedAt = &at
	return nil
}
