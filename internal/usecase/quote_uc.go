package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
	"health-insurance-portal/internal/infra/logging"
)

var _ QuoteUseCase = (*quoteUC)(nil)

type QuoteUseCase interface {
	Create(ctx context.Context, userID, plan string) (*model.Quote, error)
	Get(ctx context.Context, userID, id string) (*model.Quote, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Quote, error)
}

type quoteUC struct {
	quotes   repository.QuoteRepository
	currency string
	log      *zerolog.Logger
}

func NewQuoteUseCase(quotes repository.QuoteRepository, currency string, logger *zerolog.Logger) *quoteUC {
	return &quoteUC{quotes: quotes, currency: currency, log: logger}
}

func (u *quoteUC) Create(ctx context.Context, userID, plan string) (*model.Quote, error) {
	defer logging.TraceDuration(u.log, "QuoteUC.Create")()

	p, err := model.ParseQuotePlan(plan)
	if err != nil {
		return nil, err
	}
	q, err := model.NewQuote(uuid.NewString(), userID, p, u.currency)
	if err != nil {
		return nil, err
	}
	if err := u.quotes.Save(ctx, nil, q); err != nil {
		return nil, err
	}
	u.log.Info().Str("quote_id", q.ID).Str("plan", string(q.Plan)).Str("price", q.Price.String()).Msg("quote created")
	return q, nil
}

// Get hides other users' quotes behind ErrNotFound.
func (u *quoteUC) Get(ctx context.Context, userID, id string) (*model.Quote, error) {
	q, err := u.quotes.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if q == nil || q.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return q, nil
}

func (u *quoteUC) ListByUser(ctx context.Context, userID string) ([]*model.Quote, error) {
	return u.quotes.ListByUser(ctx, nil, userID)
}
