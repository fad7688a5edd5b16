//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/adapter"
	"health-insurance-portal/internal/domain/ports/repository"
)

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	NameVal model.Gateway

	mu            sync.Mutex
	InitiateCalls int
	ConfirmCalls  int

	InitiateFunc      func(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error)
	ConfirmFunc       func(ctx context.Context, reference string) (adapter.Confirmation, error)
	ParseCallbackFunc func(ctx context.Context, payload []byte, header http.Header) (adapter.Confirmation, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() model.Gateway {
	if m.NameVal == "" {
		return model.GatewayStripe
	}
	return m.NameVal
}

func (m *MockPaymentGateway) Initiate(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error) {
	m.mu.Lock()
	m.InitiateCalls++
	m.mu.Unlock()
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, req)
	}
	ref := "pi_" + uuid.NewString()[:8]
	return adapter.InitiateResult{Reference: ref, RedirectURL: "https://pay.example/" + ref}, nil
}

func (m *MockPaymentGateway) Confirm(ctx context.Context, reference string) (adapter.Confirmation, error) {
	m.mu.Lock()
	m.ConfirmCalls++
	m.mu.Unlock()
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, reference)
	}
	return adapter.Confirmation{Reference: reference, Status: adapter.ConfirmationPending, RawStatus: "processing"}, nil
}

func (m *MockPaymentGateway) ParseCallback(ctx context.Context, payload []byte, header http.Header) (adapter.Confirmation, error) {
	if m.ParseCallbackFunc != nil {
		return m.ParseCallbackFunc(ctx, payload, header)
	}
	return adapter.Confirmation{}, domain.ErrIgnoredEvent
}

func (m *MockPaymentGateway) confirmCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ConfirmCalls
}

// ---- Mock GatewayRegistry ----

type MockRegistry map[model.Gateway]adapter.PaymentGateway

func (r MockRegistry) Get(name model.Gateway) (adapter.PaymentGateway, error) {
	if g, ok := r[name]; ok {
		return g, nil
	}
	return nil, domain.ErrUnsupportedGateway
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func NewMockLocker() *MockLocker { return &MockLocker{held: map[string]string{}} }

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", errors.New("locked")
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return errors.New("unlock token mismatch")
	}
	delete(l.held, key)
	return nil
}

// =============================
// Repositories
// =============================

// ---- Mock TransactionRepository ----

// MockTransactionRepo guards TransitionIfPending with a mutex, which plays
// the role of the conditional UPDATE in Postgres.
type MockTransactionRepo struct {
	mu    sync.Mutex
	byRef map[string]*model.Transaction

	Transitions int // successful pending -> terminal moves

	CreateFunc              func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
	TransitionIfPendingFunc func(ctx context.Context, tx repository.Tx, ref string, to model.TransactionStatus) (bool, error)
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{byRef: map[string]*model.Transaction{}}
}

func (r *MockTransactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRef[t.Reference]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *t
	r.byRef[t.Reference] = &cp
	return nil
}

func (r *MockTransactionRepo) FindByReference(ctx context.Context, tx repository.Tx, ref string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MockTransactionRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, ref string, to model.TransactionStatus, raw string, at time.Time) (bool, error) {
	if r.TransitionIfPendingFunc != nil {
		return r.TransitionIfPendingFunc(ctx, tx, ref, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[ref]
	if !ok || t.Status != model.TransactionStatusPending {
		return false, nil
	}
	t.Status = to
	t.GatewayStatus = raw
	t.UpdatedAt = at
	t.ResolvedAt = &at
	r.Transitions++
	return true, nil
}

func (r *MockTransactionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.Transaction, error) {
	return r.List(ctx, tx, repository.TransactionFilter{UserID: userID, Limit: limit, Offset: offset})
}

func (r *MockTransactionRepo) List(ctx context.Context, tx repository.Tx, f repository.TransactionFilter) ([]*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.byRef {
		if f.UserID != "" && t.UserID != f.UserID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Gateway != "" && t.Gateway != f.Gateway {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MockTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.byRef {
		if t.Status == model.TransactionStatusPending && t.CreatedAt.Before(olderThan) {
			cp := *t
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockTransactionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.TransactionStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.TransactionStatus]int{}
	for _, t := range r.byRef {
		out[t.Status]++
	}
	return out, nil
}

func (r *MockTransactionRepo) transitions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Transitions
}

// ---- Mock QuoteRepository ----

type MockQuoteRepo struct {
	mu   sync.Mutex
	data map[string]*model.Quote

	MarkPaidCalls int // calls that actually flipped is_paid
}

var _ repository.QuoteRepository = (*MockQuoteRepo)(nil)

func NewMockQuoteRepo() *MockQuoteRepo { return &MockQuoteRepo{data: map[string]*model.Quote{}} }

func (r *MockQuoteRepo) Save(ctx context.Context, tx repository.Tx, q *model.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *q
	r.data[q.ID] = &cp
	return nil
}

func (r *MockQuoteRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (r *MockQuoteRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Quote
	for _, q := range r.data {
		if q.UserID == userID {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockQuoteRepo) MarkPaidIfUnpaid(ctx context.Context, tx repository.Tx, id, reference string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.data[id]
	if !ok {
		return false, nil
	}
	if !q.MarkPaid(reference, at) {
		return false, nil
	}
	r.MarkPaidCalls++
	return true, nil
}

func (r *MockQuoteRepo) markPaidCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.MarkPaidCalls
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.UserSubscription

	SaveFunc func(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.UserSubscription{}}
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.data[s.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UserSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MockSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.UserSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.UserSubscription
	for _, s := range r.data {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockSubscriptionRepo) CountActiveByPackage(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, s := range r.data {
		if s.IsActive() {
			out[s.PackageID]++
		}
	}
	return out, nil
}

// ---- Mock PackageRepository ----

type MockPackageRepo struct {
	mu   sync.Mutex
	data map[string]*model.SubscriptionPackage
}

var _ repository.PackageRepository = (*MockPackageRepo)(nil)

func NewMockPackageRepo() *MockPackageRepo {
	return &MockPackageRepo{data: map[string]*model.SubscriptionPackage{}}
}

func (r *MockPackageRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPackageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.SubscriptionPackage, 0, len(r.data))
	for _, p := range r.data {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
