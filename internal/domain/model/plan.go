package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"health-insurance-portal/internal/domain"
)

// YearlyDiscount is applied to the yearly list price (20% off).
var YearlyDiscount = decimal.RequireFromString("0.8")

type Cadence string

const (
	CadenceMonthly Cadence = "monthly"
	CadenceYearly  Cadence = "yearly"
)

func ParseCadence(s string) (Cadence, error) {
	switch c := Cadence(strings.ToLower(strings.TrimSpace(s))); c {
	case CadenceMonthly, CadenceYearly:
		return c, nil
	default:
		return "", &domain.ValidationError{Field: "cadence", Reason: "must be monthly or yearly"}
	}
}

// SubscriptionPackage is a catalog entry. PriceYearly is the undiscounted
// yearly list price; zero means twelve monthly payments.
type SubscriptionPackage struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PriceMonthly Money     `json:"price_monthly"`
	PriceYearly  Money     `json:"price_yearly"`
	CreatedAt    time.Time `json:"created_at"`
}

func (p *SubscriptionPackage) IsZero() bool { return p == nil || p.ID == "" }

// NewSubscriptionPackage validates and constructs a package.
func NewSubscriptionPackage(id, name, description string, monthly, yearly Money) (*SubscriptionPackage, error) {
	if id == "" || strings.TrimSpace(name) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := monthly.Validate(); err != nil {
		return nil, err
	}
	if !yearly.IsZero() && NormalizeCurrency(yearly.Currency) != NormalizeCurrency(monthly.Currency) {
		return nil, &domain.ValidationError{Field: "price_yearly", Reason: "currency differs from monthly price"}
	}
	return &SubscriptionPackage{
		ID:           id,
		Name:         name,
		Description:  description,
		PriceMonthly: monthly,
		PriceYearly:  yearly,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// YearlyListPrice is PriceYearly, or 12 x monthly when unset.
func (p *SubscriptionPackage) YearlyListPrice() Money {
	if !p.PriceYearly.IsZero() {
		return p.PriceYearly
	}
	return Money{Amount: p.PriceMonthly.Amount * 12, Currency: p.PriceMonthly.Currency}
}

// ChargeFor returns what the user pays for one period of the given cadence.
func (p *SubscriptionPackage) ChargeFor(c Cadence) (Money, error) {
	switch c {
	case CadenceMonthly:
		return p.PriceMonthly, nil
	case CadenceYearly:
		return p.YearlyListPrice().ApplyMultiplier(YearlyDiscount), nil
	default:
		return Money{}, &domain.ValidationError{Field: "cadence", Reason: "must be monthly or yearly"}
	}
}
