// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/adapter"
	"health-insurance-portal/internal/domain/ports/repository"
	portsuc "health-insurance-portal/internal/domain/ports/usecase"
	"health-insurance-portal/internal/infra/logging"
	"health-insurance-portal/internal/infra/metrics"
	red "health-insurance-portal/internal/infra/redis"
)

// Compile-time checks
var (
	_ ReconcileUseCase   = (*reconcileUC)(nil)
	_ portsuc.Reverifier = (*reconcileUC)(nil)
)

// Callback sources, used as metric and log labels.
const (
	SourceWebhook = "webhook"
	SourceVerify  = "verify"
	SourceSweep   = "sweep"
)

// InitiateCommand is a user's request to pay for a quote or subscription.
type InitiateCommand struct {
	UserID      string `validate:"required"`
	Email       string `validate:"omitempty,email"`
	PayableType string `validate:"required,oneof=quote subscription"`
	PayableID   string `validate:"required"`
	Gateway     string `validate:"required"`
	SuccessURL  string `validate:"omitempty,url"`
	CancelURL   string `validate:"omitempty,url"`
}

// Checkout is what the browser needs to continue at the provider.
type Checkout struct {
	Transaction  *model.Transaction `json:"transaction"`
	RedirectURL  string             `json:"redirect_url,omitempty"`
	ClientSecret string             `json:"client_secret,omitempty"`
}

// ReconcileUseCase drives a payment from initiation to a terminal ledger state.
//
//	Requested -> Initiated -> AwaitingCallback -> Resolved{Success|Failed}
//
// Callbacks and verify polls for the same reference may race; the ledger's
// conditional transition guarantees only one of them moves it out of pending.
type ReconcileUseCase interface {
	Initiate(ctx context.Context, cmd InitiateCommand) (*Checkout, error)
	HandleCallback(ctx context.Context, gw model.Gateway, payload []byte, header http.Header) (*model.Transaction, error)
	Verify(ctx context.Context, reference string) (*model.Transaction, error)
	// Reverify is Verify for background tooling; it labels metrics as a sweep.
	Reverify(ctx context.Context, reference string) (*model.Transaction, error)
}

// ReconcileOptions carries the non-repository knobs of the controller.
type ReconcileOptions struct {
	ReturnURL string // where gateways send the browser back (our verify endpoint)
	CancelURL string
	Locker    adapter.Locker // optional
	LockTTL   time.Duration
}

type reconcileUC struct {
	ledger    LedgerUseCase
	activator ActivatorUseCase
	quotes    repository.QuoteRepository
	subs      repository.SubscriptionRepository
	gateways  adapter.GatewayRegistry
	tm        repository.TransactionManager
	opts      ReconcileOptions
	log       *zerolog.Logger
}

func NewReconcileUseCase(
	ledger LedgerUseCase,
	activator ActivatorUseCase,
	quotes repository.QuoteRepository,
	subs repository.SubscriptionRepository,
	gateways adapter.GatewayRegistry,
	tm repository.TransactionManager,
	opts ReconcileOptions,
	logger *zerolog.Logger,
) *reconcileUC {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	return &reconcileUC{
		ledger:    ledger,
		activator: activator,
		quotes:    quotes,
		subs:      subs,
		gateways:  gateways,
		tm:        tm,
		opts:      opts,
		log:       logger,
	}
}

// payableCharge is the resolved entity a checkout pays for.
type payableCharge struct {
	ref         model.PayableRef
	amount      model.Money
	description string
}

func (u *reconcileUC) Initiate(ctx context.Context, cmd InitiateCommand) (*Checkout, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.Initiate")()

	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	gwName, err := model.ParseGateway(cmd.Gateway)
	if err != nil {
		return nil, err
	}
	gateway, err := u.gateways.Get(gwName)
	if err != nil {
		return nil, err
	}
	charge, err := u.loadPayable(ctx, cmd)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithGateway(logging.WithUserID(ctx, cmd.UserID), string(gwName))
	log := logging.With(ctx, u.log)

	meta := map[string]string{"user_id": cmd.UserID}
	meta[string(charge.ref.Kind)+"_id"] = charge.ref.ID
	req := adapter.InitiateRequest{
		Amount:      charge.amount,
		Customer:    adapter.Customer{UserID: cmd.UserID, Email: cmd.Email},
		SuccessURL:  firstNonEmpty(cmd.SuccessURL, u.opts.ReturnURL),
		CancelURL:   firstNonEmpty(cmd.CancelURL, u.opts.CancelURL, u.opts.ReturnURL),
		Description: charge.description,
		Metadata:    meta,
	}

	// No ledger row is written unless the provider accepted the charge.
	res, err := gateway.Initiate(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("payable", charge.ref.String()).Msg("gateway initiate failed")
		return nil, err
	}

	t, err := u.ledger.CreatePending(ctx, nil, cmd.UserID, &charge.ref, charge.amount, gwName, res.Reference, meta)
	if err != nil {
		log.Error().Err(err).Str("reference", res.Reference).Msg("failed to record pending transaction")
		return nil, err
	}
	return &Checkout{Transaction: t, RedirectURL: res.RedirectURL, ClientSecret: res.ClientSecret}, nil
}

func (u *reconcileUC) loadPayable(ctx context.Context, cmd InitiateCommand) (*payableCharge, error) {
	kind, err := model.ParsePayableKind(cmd.PayableType)
	if err != nil {
		return nil, err
	}
	switch kind {
	case model.PayableQuote:
		q, err := u.quotes.FindByID(ctx, nil, cmd.PayableID)
		if err != nil {
			return nil, err
		}
		if q == nil {
			return nil, domain.ErrNotFound
		}
		if q.UserID != cmd.UserID {
			return nil, domain.ErrForbidden
		}
		if q.IsPaid {
			return nil, domain.ErrAlreadyPaid
		}
		return &payableCharge{
			ref:         q.Ref(),
			amount:      q.Price,
			description: fmt.Sprintf("Health insurance quote (%s plan)", q.Plan),
		}, nil
	default:
		s, err := u.subs.FindByID(ctx, nil, cmd.PayableID)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, domain.ErrNotFound
		}
		if s.UserID != cmd.UserID {
			return nil, domain.ErrForbidden
		}
		if s.IsActive() {
			return nil, domain.ErrAlreadyPaid
		}
		return &payableCharge{
			ref:         s.Ref(),
			amount:      s.Price,
			description: fmt.Sprintf("Health insurance subscription (%s)", s.Cadence),
		}, nil
	}
}

func (u *reconcileUC) HandleCallback(ctx context.Context, gw model.Gateway, payload []byte, header http.Header) (*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.HandleCallback")()

	gateway, err := u.gateways.Get(gw)
	if err != nil {
		return nil, err
	}
	conf, err := gateway.ParseCallback(ctx, payload, header)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrIgnoredEvent):
			metrics.IncCallback(string(gw), SourceWebhook, "ignored")
		case errors.Is(err, domain.ErrSignature):
			metrics.IncCallback(string(gw), SourceWebhook, "signature")
			u.log.Warn().Err(err).Str("gateway", string(gw)).Msg("callback rejected")
		default:
			metrics.IncCallback(string(gw), SourceWebhook, "error")
			u.log.Error().Err(err).Str("gateway", string(gw)).Msg("callback parse failed")
		}
		return nil, err
	}
	return u.resolve(ctx, gw, SourceWebhook, conf)
}

func (u *reconcileUC) Verify(ctx context.Context, reference string) (*model.Transaction, error) {
	return u.verify(ctx, reference, SourceVerify)
}

func (u *reconcileUC) Reverify(ctx context.Context, reference string) (*model.Transaction, error) {
	return u.verify(ctx, reference, SourceSweep)
}

func (u *reconcileUC) verify(ctx context.Context, reference, source string) (*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.Verify")()

	// Unknown references never reach a gateway.
	t, err := u.ledger.Get(ctx, nil, reference)
	if err != nil {
		var unknown *domain.UnknownReferenceError
		if errors.As(err, &unknown) {
			metrics.IncCallback("unknown", source, "unknown_reference")
		}
		return nil, err
	}
	if t.IsTerminal() {
		metrics.IncCallback(string(t.Gateway), source, "duplicate")
		return t, nil
	}

	gateway, err := u.gateways.Get(t.Gateway)
	if err != nil {
		return nil, err
	}
	conf, err := gateway.Confirm(ctx, reference)
	if err != nil {
		metrics.IncCallback(string(t.Gateway), source, "error")
		u.log.Error().Err(err).Str("reference", reference).Str("gateway", string(t.Gateway)).Msg("gateway confirm failed")
		return nil, err
	}
	if conf.Reference == "" {
		conf.Reference = reference
	}
	return u.resolve(ctx, t.Gateway, source, conf)
}

// resolve applies a verified confirmation to the ledger and, on success,
// activates the payable in the same storage transaction.
func (u *reconcileUC) resolve(ctx context.Context, gw model.Gateway, source string, conf adapter.Confirmation) (*model.Transaction, error) {
	ref := conf.Reference
	ctx = logging.WithGateway(logging.WithReference(ctx, ref), string(gw))
	log := logging.With(ctx, u.log)

	if u.opts.Locker != nil {
		key := red.ReferenceLockKey(ref)
		token, err := u.opts.Locker.TryLock(ctx, key, u.opts.LockTTL)
		if err != nil {
			// the storage guard still holds; the lock only saves redundant work
			log.Debug().Err(err).Msg("reference lock not acquired")
		} else {
			defer func() {
				if err := u.opts.Locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Msg("reference unlock failed")
				}
			}()
		}
	}

	var (
		result  *model.Transaction
		outcome string
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		t, err := u.ledger.Get(ctx, tx, ref)
		if err != nil {
			return err
		}
		if t.Gateway != gw {
			return &domain.UnknownReferenceError{Reference: ref}
		}
		if t.IsTerminal() {
			result, outcome = t, "duplicate"
			return nil
		}

		switch conf.Status {
		case adapter.ConfirmationPending:
			result, outcome = t, "pending"
			return nil

		case adapter.ConfirmationFailed:
			outcome = "failed"
			result, err = u.ledger.MarkFailed(ctx, tx, ref, conf.RawStatus)
			return err

		case adapter.ConfirmationSuccess:
			if !conf.Amount.IsZero() && !conf.Amount.Equal(t.Amount) {
				log.Warn().
					Str("expected", t.Amount.String()).
					Str("reported", conf.Amount.String()).
					Msg("gateway amount differs from ledger; marking failed")
				outcome = "amount_mismatch"
				result, err = u.ledger.MarkFailed(ctx, tx, ref, "amount_mismatch:"+conf.RawStatus)
				return err
			}
			outcome = "success"
			result, err = u.ledger.MarkSuccess(ctx, tx, ref, conf.RawStatus)
			if err != nil {
				return err
			}
			if t.Payable == nil {
				return nil
			}
			at := time.Now().UTC()
			if result.ResolvedAt != nil {
				at = *result.ResolvedAt
			}
			return u.activator.Activate(ctx, tx, *t.Payable, ref, at)

		default:
			return fmt.Errorf("confirmation status %q: %w", conf.Status, domain.ErrInvalidArgument)
		}
	})
	if err != nil {
		var unknown *domain.UnknownReferenceError
		switch {
		case domain.IsDuplicateTransition(err) && result != nil:
			// lost the race to a concurrent callback; the winner's state stands
			metrics.IncCallback(string(gw), source, "duplicate")
			log.Info().Str("status", string(result.Status)).Msg("duplicate transition ignored")
			return result, nil
		case errors.As(err, &unknown):
			metrics.IncCallback(string(gw), source, "unknown_reference")
			log.Warn().Msg("callback for unknown reference")
		default:
			metrics.IncCallback(string(gw), source, "error")
			log.Error().Err(err).Msg("reconcile failed")
		}
		return nil, err
	}

	metrics.IncCallback(string(gw), source, outcome)
	log.Info().Str("source", source).Str("outcome", outcome).Str("status", string(result.Status)).Msg("reconciled")
	return result, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
