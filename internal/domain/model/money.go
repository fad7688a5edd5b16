package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"health-insurance-portal/internal/domain"
)

// zeroDecimal lists currencies whose smallest unit is the major unit.
var zeroDecimal = map[string]bool{"JPY": true, "KRW": true, "VND": true, "XAF": true, "XOF": true}

// Money is an amount in the currency's smallest unit (cents, kobo).
// Floating point never touches it.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: NormalizeCurrency(currency)}
}

func NormalizeCurrency(c string) string { return strings.ToUpper(strings.TrimSpace(c)) }

// MinorExponent is the number of decimal places between major and minor units.
func MinorExponent(currency string) int32 {
	if zeroDecimal[NormalizeCurrency(currency)] {
		return 0
	}
	return 2
}

// ParseMoney converts a major-unit decimal string ("199.99") to Money.
func ParseMoney(major, currency string) (Money, error) {
	cur := NormalizeCurrency(currency)
	if len(cur) != 3 {
		return Money{}, &domain.ValidationError{Field: "currency", Reason: "must be a 3-letter ISO code"}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(major))
	if err != nil {
		return Money{}, &domain.ValidationError{Field: "amount", Reason: "is not a decimal number"}
	}
	if d.IsNegative() {
		return Money{}, &domain.ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	exp := MinorExponent(cur)
	if !d.Equal(d.Truncate(exp)) {
		return Money{}, &domain.ValidationError{Field: "amount", Reason: fmt.Sprintf("has more than %d decimal places", exp)}
	}
	return Money{Amount: d.Shift(exp).IntPart(), Currency: cur}, nil
}

// MustParseMoney is ParseMoney for static tables.
func MustParseMoney(major, currency string) Money {
	m, err := ParseMoney(major, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Major renders the amount in major units, e.g. "199.99".
func (m Money) Major() string {
	exp := MinorExponent(m.Currency)
	return decimal.New(m.Amount, -exp).StringFixed(exp)
}

// ApplyMultiplier scales the amount and rounds half away from zero to the minor unit.
func (m Money) ApplyMultiplier(factor decimal.Decimal) Money {
	v := decimal.NewFromInt(m.Amount).Mul(factor).Round(0)
	return Money{Amount: v.IntPart(), Currency: m.Currency}
}

func (m Money) IsZero() bool { return m.Amount == 0 }

func (m Money) Equal(o Money) bool {
	return m.Amount == o.Amount && NormalizeCurrency(m.Currency) == NormalizeCurrency(o.Currency)
}

func (m Money) String() string { return m.Major() + " " + m.Currency }

// Validate rejects amounts a gateway could not charge.
func (m Money) Validate() error {
	if len(NormalizeCurrency(m.Currency)) != 3 {
		return &domain.ValidationError{Field: "currency", Reason: "must be a 3-letter ISO code"}
	}
	if m.Amount <= 0 {
		return &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return nil
}
