// File: internal/usecase/activator_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
	"health-insurance-portal/internal/infra/metrics"
)

var _ ActivatorUseCase = (*activatorUC)(nil)

// ActivatorUseCase applies the business effect of a successful payment.
// It must run in the same storage transaction as the ledger transition
// and is idempotent: a second call for the same payable is a no-op.
type ActivatorUseCase interface {
	Activate(ctx context.Context, qx repository.Tx, payable model.PayableRef, reference string, at time.Time) error
}

type activatorUC struct {
	quotes repository.QuoteRepository
	subs   repository.SubscriptionRepository
	log    *zerolog.Logger
}

func NewActivatorUseCase(quotes repository.QuoteRepository, subs repository.SubscriptionRepository, logger *zerolog.Logger) *activatorUC {
	return &activatorUC{quotes: quotes, subs: subs, log: logger}
}

func (a *activatorUC) Activate(ctx context.Context, qx repository.Tx, payable model.PayableRef, reference string, at time.Time) error {
	switch payable.Kind {
	case model.PayableQuote:
		return a.activateQuote(ctx, qx, payable.ID, reference, at)
	case model.PayableSubscription:
		return a.activateSubscription(ctx, qx, payable.ID, reference, at)
	default:
		return fmt.Errorf("activate %s: %w", payable, domain.ErrInvalidArgument)
	}
}

func (a *activatorUC) activateQuote(ctx context.Context, qx repository.Tx, id, reference string, at time.Time) error {
	changed, err := a.quotes.MarkPaidIfUnpaid(ctx, qx, id, reference, at)
	if err != nil {
		return err
	}
	if !changed {
		// either already paid or missing; only the latter is an error
		q, err := a.quotes.FindByID(ctx, qx, id)
		if err != nil {
			return err
		}
		if q == nil {
			return fmt.Errorf("quote %s: %w", id, domain.ErrNotFound)
		}
		a.log.Debug().Str("quote_id", id).Str("reference", reference).Msg("quote already paid; activation skipped")
		return nil
	}
	metrics.IncActivation(model.PayableQuote)
	a.log.Info().Str("quote_id", id).Str("reference", reference).Msg("quote marked paid")
	return nil
}

func (a *activatorUC) activateSubscription(ctx context.Context, qx repository.Tx, id, reference string, at time.Time) error {
	sub, err := a.subs.FindByID(ctx, qx, id)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("subscription %s: %w", id, domain.ErrNotFound)
	}
	if !sub.Activate(reference, at) {
		a.log.Debug().Str("subscription_id", id).Str("reference", reference).Msg("subscription already active; activation skipped")
		return nil
	}
	if err := a.subs.Save(ctx, qx, sub); err != nil {
		return err
	}
	metrics.IncActivation(model.PayableSubscription)
	a.log.Info().
		Str("subscription_id", id).
		Str("reference", reference).
		Time("end_date", sub.EndDate).
		Msg("subscription activated")
	return nil
}
