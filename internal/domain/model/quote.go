package model

import (
	"strings"
	"time"

	"health-insurance-portal/internal/domain"
)

type QuotePlan string

const (
	PlanBronze   QuotePlan = "Bronze"
	PlanRuby     QuotePlan = "Ruby"
	PlanGold     QuotePlan = "Gold"
	PlanPlatinum QuotePlan = "Platinum"
)

// quotePlanPrices holds the list price of each plan in major units.
var quotePlanPrices = map[QuotePlan]string{
	PlanBronze:   "100.00",
	PlanRuby:     "200.00",
	PlanGold:     "300.00",
	PlanPlatinum: "400.00",
}

func ParseQuotePlan(s string) (QuotePlan, error) {
	for p := range quotePlanPrices {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", &domain.ValidationError{Field: "plan", Reason: "must be one of Bronze, Ruby, Gold, Platinum"}
}

// PlanPrice returns the list price of a plan in the given currency.
func PlanPrice(p QuotePlan, currency string) (Money, error) {
	major, ok := quotePlanPrices[p]
	if !ok {
		return Money{}, &domain.ValidationError{Field: "plan", Reason: "unknown plan"}
	}
	return ParseMoney(major, currency)
}

// Quote is an insurance quote the user can pay for once.
type Quote struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Plan          QuotePlan  `json:"plan"`
	Price         Money      `json:"price"`
	IsPaid        bool       `json:"is_paid"`
	PaidReference *string    `json:"paid_reference,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// NewQuote prices the quote from the plan table.
func NewQuote(id, userID string, plan QuotePlan, currency string) (*Quote, error) {
	if id == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	price, err := PlanPrice(plan, currency)
	if err != nil {
		return nil, err
	}
	return &Quote{
		ID:        id,
		UserID:    userID,
		Plan:      plan,
		Price:     price,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (q *Quote) Ref() PayableRef { return PayableRef{Kind: PayableQuote, ID: q.ID} }

// MarkPaid reports false when the quote was already paid.
func (q *Quote) MarkPaid(reference string, at time.Time) bool {
	if q.IsPaid {
		return false
	}
	q.IsPaid = true
	q.PaidReference = &reference
	q.PaidAt = &at
	return true
}
