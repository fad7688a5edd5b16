//go:build !integration

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
	"health-insurance-portal/internal/usecase"
)

type mockReconcile struct {
	InitiateFunc       func(ctx context.Context, cmd usecase.InitiateCommand) (*usecase.Checkout, error)
	HandleCallbackFunc func(ctx context.Context, gw model.Gateway, payload []byte, header http.Header) (*model.Transaction, error)
	VerifyFunc         func(ctx context.Context, reference string) (*model.Transaction, error)
}

func (m *mockReconcile) Initiate(ctx context.Context, cmd usecase.InitiateCommand) (*usecase.Checkout, error) {
	return m.InitiateFunc(ctx, cmd)
}
func (m *mockReconcile) HandleCallback(ctx context.Context, gw model.Gateway, payload []byte, header http.Header) (*model.Transaction, error) {
	return m.HandleCallbackFunc(ctx, gw, payload, header)
}
func (m *mockReconcile) Verify(ctx context.Context, reference string) (*model.Transaction, error) {
	return m.VerifyFunc(ctx, reference)
}
func (m *mockReconcile) Reverify(ctx context.Context, reference string) (*model.Transaction, error) {
	return m.VerifyFunc(ctx, reference)
}

type mockQuotes struct {
	CreateFunc     func(ctx context.Context, userID, plan string) (*model.Quote, error)
	ListByUserFunc func(ctx context.Context, userID string) ([]*model.Quote, error)
}

func (m *mockQuotes) Create(ctx context.Context, userID, plan string) (*model.Quote, error) {
	return m.CreateFunc(ctx, userID, plan)
}
func (m *mockQuotes) Get(ctx context.Context, userID, id string) (*model.Quote, error) {
	return nil, nil
}
func (m *mockQuotes) ListByUser(ctx context.Context, userID string) ([]*model.Quote, error) {
	return m.ListByUserFunc(ctx, userID)
}

type mockSubscriptions struct {
	SelectFunc               func(ctx context.Context, userID, packageID, cadence string) (*model.UserSubscription, error)
	ListByUserFunc           func(ctx context.Context, userID string) ([]*model.UserSubscription, error)
	CountActiveByPackageFunc func(ctx context.Context) (map[string]int, error)
}

func (m *mockSubscriptions) Select(ctx context.Context, userID, packageID, cadence string) (*model.UserSubscription, error) {
	return m.SelectFunc(ctx, userID, packageID, cadence)
}
func (m *mockSubscriptions) Get(ctx context.Context, userID, id string) (*model.UserSubscription, error) {
	return nil, nil
}
func (m *mockSubscriptions) ListByUser(ctx context.Context, userID string) ([]*model.UserSubscription, error) {
	return m.ListByUserFunc(ctx, userID)
}
func (m *mockSubscriptions) CountActiveByPackage(ctx context.Context) (map[string]int, error) {
	return m.CountActiveByPackageFunc(ctx)
}

type mockPackages struct {
	ListFunc func(ctx context.Context) ([]*model.SubscriptionPackage, error)
}

func (m *mockPackages) List(ctx context.Context) ([]*model.SubscriptionPackage, error) {
	return m.ListFunc(ctx)
}

type mockTransactions struct {
	ListByUserFunc    func(ctx context.Context, userID string, limit, offset int) ([]*model.Transaction, error)
	ListFunc          func(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, error)
	CountByStatusFunc func(ctx context.Context) (map[model.TransactionStatus]int, error)
}

func (m *mockTransactions) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Transaction, error) {
	return m.ListByUserFunc(ctx, userID, limit, offset)
}
func (m *mockTransactions) List(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, error) {
	return m.ListFunc(ctx, f)
}
func (m *mockTransactions) CountByStatus(ctx context.Context) (map[model.TransactionStatus]int, error) {
	return m.CountByStatusFunc(ctx)
}

// countingLimiter allows the first `limit` calls per key.
type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}
