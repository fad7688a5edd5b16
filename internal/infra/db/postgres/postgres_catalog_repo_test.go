//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
)

func TestQuoteRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	ctx := context.Background()
	repo := NewQuoteRepo(testPool)

	q, err := model.NewQuote("quote-1", "user-1", model.PlanGold, "USD")
	if err != nil {
		t.Fatalf("NewQuote: %v", err)
	}
	if err := repo.Save(ctx, repository.NoTX, q); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	at := time.Now().UTC()
	ok, err := repo.MarkPaidIfUnpaid(ctx, repository.NoTX, "quote-1", "pi_1", at)
	if err != nil || !ok {
		t.Fatalf("first MarkPaidIfUnpaid: ok=%v err=%v", ok, err)
	}
	ok, err = repo.MarkPaidIfUnpaid(ctx, repository.NoTX, "quote-1", "pi_2", at)
	if err != nil || ok {
		t.Fatalf("second MarkPaidIfUnpaid must be a no-op: ok=%v err=%v", ok, err)
	}

	got, err := repo.FindByID(ctx, repository.NoTX, "quote-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !got.IsPaid || got.PaidReference == nil || *got.PaidReference != "pi_1" {
		t.Errorf("unexpected quote: %+v", got)
	}
	if got.Price.Amount != 30000 {
		t.Errorf("expected price 30000, got %d", got.Price.Amount)
	}

	list, err := repo.ListByUser(ctx, repository.NoTX, "user-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByUser: len=%d err=%v", len(list), err)
	}

	if _, err := repo.FindByID(ctx, repository.NoTX, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPackageAndSubscriptionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	ctx := context.Background()
	packages := NewPackageRepo(testPool)
	subs := NewSubscriptionRepo(testPool)

	basic, _ := model.NewSubscriptionPackage("pkg-basic", "Basic", "", model.NewMoney(5000, "USD"), model.Money{})
	family, _ := model.NewSubscriptionPackage("pkg-family", "Family", "", model.NewMoney(9000, "USD"), model.NewMoney(100000, "USD"))
	for _, p := range []*model.SubscriptionPackage{family, basic} {
		if err := packages.Save(ctx, repository.NoTX, p); err != nil {
			t.Fatalf("Save package failed: %v", err)
		}
	}

	all, err := packages.ListAll(ctx, repository.NoTX)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListAll: len=%d err=%v", len(all), err)
	}
	if all[0].ID != "pkg-basic" {
		t.Errorf("expected cheapest package first, got %s", all[0].ID)
	}
	gotFamily, err := packages.FindByID(ctx, repository.NoTX, "pkg-family")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if gotFamily.PriceYearly.Amount != 100000 {
		t.Errorf("expected yearly price 100000, got %d", gotFamily.PriceYearly.Amount)
	}

	now := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	sub, err := model.NewUserSubscription("sub-1", "user-1", gotFamily, model.CadenceYearly, now)
	if err != nil {
		t.Fatalf("NewUserSubscription: %v", err)
	}
	if err := subs.Save(ctx, repository.NoTX, sub); err != nil {
		t.Fatalf("Save subscription failed: %v", err)
	}

	sub.Activate("pi_sub", now)
	if err := subs.Save(ctx, repository.NoTX, sub); err != nil {
		t.Fatalf("Save activated subscription failed: %v", err)
	}

	got, err := subs.FindByID(ctx, repository.NoTX, "sub-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Status != model.SubscriptionStatusActive || got.Price.Amount != 80000 {
		t.Errorf("unexpected subscription: %+v", got)
	}
	if got.Reference == nil || *got.Reference != "pi_sub" {
		t.Errorf("reference not stored: %+v", got.Reference)
	}

	counts, err := subs.CountActiveByPackage(ctx, repository.NoTX)
	if err != nil {
		t.Fatalf("CountActiveByPackage failed: %v", err)
	}
	if counts["pkg-family"] != 1 || counts["pkg-basic"] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}

	mine, err := subs.ListByUser(ctx, repository.NoTX, "user-1")
	if err != nil || len(mine) != 1 {
		t.Fatalf("ListByUser: len=%d err=%v", len(mine), err)
	}
}
