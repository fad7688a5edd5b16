package model

import (
	"time"

	"health-insurance-portal/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusActive  SubscriptionStatus = "active"
)

// UserSubscription is a user's selection of a package at a cadence.
// It becomes active only through a successful payment.
type UserSubscription struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	PackageID   string             `json:"package_id"`
	Cadence     Cadence            `json:"cadence"`
	Price       Money              `json:"price"`
	Status      SubscriptionStatus `json:"status"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	Reference   *string            `json:"reference,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	ActivatedAt *time.Time         `json:"activated_at,omitempty"`
}

// NewUserSubscription creates a pending subscription priced for cadence. The
// dates are provisional until Activate.
func NewUserSubscription(id, userID string, pkg *SubscriptionPackage, cadence Cadence, now time.Time) (*UserSubscription, error) {
	if id == "" || userID == "" || pkg.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	price, err := pkg.ChargeFor(cadence)
	if err != nil {
		return nil, err
	}
	return &UserSubscription{
		ID:        id,
		UserID:    userID,
		PackageID: pkg.ID,
		Cadence:   cadence,
		Price:     price,
		Status:    SubscriptionStatusPending,
		StartDate: now,
		EndDate:   AddCadence(now, cadence),
		CreatedAt: now,
	}, nil
}

func (s *UserSubscription) Ref() PayableRef { return PayableRef{Kind: PayableSubscription, ID: s.ID} }

func (s *UserSubscription) IsActive() bool { return s.Status == SubscriptionStatusActive }

// Activate starts cover at the payment time and reports false when the
// subscription is already active.
func (s *UserSubscription) Activate(reference string, at time.Time) bool {
	if s.IsActive() {
		return false
	}
	s.Status = SubscriptionStatusActive
	s.StartDate = at
	s.EndDate = AddCadence(at, s.Cadence)
	s.Reference = &reference
	s.ActivatedAt = &at
	return true
}
