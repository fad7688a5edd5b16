// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
	portsuc "health-insurance-portal/internal/domain/ports/usecase"
	"health-insurance-portal/internal/infra/logging"
	"health-insurance-portal/internal/infra/metrics"
)

// Compile-time check
var (
	_ LedgerUseCase         = (*ledgerUC)(nil)
	_ portsuc.PendingLister = (*ledgerUC)(nil)
)

// LedgerUseCase is the transaction ledger. It is the only component that
// writes transaction rows, and it never deletes or rewrites amounts.
type LedgerUseCase interface {
	CreatePending(ctx context.Context, qx repository.Tx, userID string, payable *model.PayableRef, amount model.Money, gw model.Gateway, reference string, meta map[string]string) (*model.Transaction, error)
	MarkSuccess(ctx context.Context, qx repository.Tx, reference, rawStatus string) (*model.Transaction, error)
	MarkFailed(ctx context.Context, qx repository.Tx, reference, rawStatus string) (*model.Transaction, error)
	// Get locks the row when qx is a transaction.
	Get(ctx context.Context, qx repository.Tx, reference string) (*model.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Transaction, error)
	List(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, error)
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Transaction, error)
	CountByStatus(ctx context.Context) (map[model.TransactionStatus]int, error)
}

type ledgerUC struct {
	repo repository.TransactionRepository
	log  *zerolog.Logger
	now  func() time.Time
}

func NewLedgerUseCase(repo repository.TransactionRepository, logger *zerolog.Logger) *ledgerUC {
	return &ledgerUC{
		repo: repo,
		log:  logger,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (l *ledgerUC) CreatePending(ctx context.Context, qx repository.Tx, userID string, payable *model.PayableRef, amount model.Money, gw model.Gateway, reference string, meta map[string]string) (*model.Transaction, error) {
	defer logging.TraceDuration(l.log, "LedgerUC.CreatePending")()

	t, err := model.NewPendingTransaction(uuid.NewString(), reference, userID, payable, amount, gw, meta)
	if err != nil {
		return nil, err
	}
	if err := l.repo.Create(ctx, qx, t); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			l.log.Warn().Str("reference", reference).Str("gateway", string(gw)).Msg("duplicate transaction reference")
		}
		return nil, err
	}
	metrics.IncPayment(string(gw), string(model.TransactionStatusPending))
	l.log.Info().
		Str("reference", reference).
		Str("gateway", string(gw)).
		Int64("amount", t.Amount.Amount).
		Str("currency", t.Amount.Currency).
		Msg("transaction pending")
	return t, nil
}

func (l *ledgerUC) MarkSuccess(ctx context.Context, qx repository.Tx, reference, rawStatus string) (*model.Transaction, error) {
	return l.transition(ctx, qx, reference, model.TransactionStatusSuccess, rawStatus)
}

func (l *ledgerUC) MarkFailed(ctx context.Context, qx repository.Tx, reference, rawStatus string) (*model.Transaction, error) {
	return l.transition(ctx, qx, reference, model.TransactionStatusFailed, rawStatus)
}

// transition relies on the storage-level conditional update. A lost race
// surfaces as *domain.DuplicateTransitionError carrying the winner's status.
func (l *ledgerUC) transition(ctx context.Context, qx repository.Tx, reference string, to model.TransactionStatus, rawStatus string) (*model.Transaction, error) {
	at := l.now()
	ok, err := l.repo.TransitionIfPending(ctx, qx, reference, to, rawStatus, at)
	if err != nil {
		return nil, err
	}
	current, err := l.Get(ctx, qx, reference)
	if err != nil {
		return nil, err
	}
	if !ok {
		return current, &domain.DuplicateTransitionError{
			Reference: reference,
			Current:   string(current.Status),
			Attempted: string(to),
		}
	}

	metrics.IncPayment(string(current.Gateway), string(to))
	metrics.IncTransition(string(current.Gateway), string(to))
	if to == model.TransactionStatusSuccess {
		metrics.AddPaymentRevenue(current.Amount.Currency, current.Amount.Amount)
	}
	l.log.Info().
		Str("reference", reference).
		Str("gateway", string(current.Gateway)).
		Str("to", string(to)).
		Str("gateway_status", rawStatus).
		Msg("transaction resolved")
	return current, nil
}

func (l *ledgerUC) Get(ctx context.Context, qx repository.Tx, reference string) (*model.Transaction, error) {
	t, err := l.repo.FindByReference(ctx, qx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.UnknownReferenceError{Reference: reference}
		}
		return nil, err
	}
	if t == nil {
		return nil, &domain.UnknownReferenceError{Reference: reference}
	}
	return t, nil
}

func (l *ledgerUC) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Transaction, error) {
	return l.repo.ListByUser(ctx, nil, userID, clampLimit(limit), max(offset, 0))
}

func (l *ledgerUC) List(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, error) {
	f.Limit = clampLimit(f.Limit)
	f.Offset = max(f.Offset, 0)
	return l.repo.List(ctx, nil, f)
}

func (l *ledgerUC) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Transaction, error) {
	return l.repo.ListPendingOlderThan(ctx, nil, l.now().Add(-olderThan), clampLimit(limit))
}

func (l *ledgerUC) CountByStatus(ctx context.Context) (map[model.TransactionStatus]int, error) {
	counts, err := l.repo.CountByStatus(ctx, nil)
	if err != nil {
		return nil, err
	}
	metrics.SetTransactionsByStatus(counts)
	return counts, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}
