package main

import (
	"context"
	"fmt"
	"time"

	"health-insurance-portal/internal/config"
	"health-insurance-portal/internal/domain/model"
	pg "health-insurance-portal/internal/infra/db/postgres"
	"health-insurance-portal/internal/infra/logging"
	"health-insurance-portal/internal/usecase"
)

func main() {
	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Global.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.ConnectPostgres(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	pkgUC := usecase.NewPackageUseCase(pg.NewPackageRepo(pool), logger)

	// If packages already exist, do nothing
	pkgs, err := pkgUC.List(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list packages")
	}
	if len(pkgs) > 0 {
		fmt.Printf("%d packages already present. No changes.\n", len(pkgs))
		for _, p := range pkgs {
			fmt.Printf("  - %s (monthly=%s, yearly=%s)\n", p.Name, p.PriceMonthly, p.YearlyListPrice())
		}
		return
	}

	cur := cfg.Payment.DefaultCurrency
	seed := []struct {
		Name, Description string
		Monthly, Yearly   string
	}{
		{"Individual", "Outpatient and inpatient cover for one adult.", "50.00", ""},
		{"Couple", "Cover for two adults with shared hospital benefits.", "90.00", "1000.00"},
		{"Family", "Cover for two adults and up to four children.", "150.00", "1650.00"},
	}

	for _, s := range seed {
		yearly := model.Money{}
		if s.Yearly != "" {
			yearly = model.MustParseMoney(s.Yearly, cur)
		}
		p, err := pkgUC.Create(ctx, s.Name, s.Description, model.MustParseMoney(s.Monthly, cur), yearly)
		if err != nil {
			logger.Fatal().Err(err).Str("package", s.Name).Msg("create package")
		}
		yearlyCharge, _ := p.ChargeFor(model.CadenceYearly)
		fmt.Printf("seeded: %s (id=%s, monthly=%s, yearly=%s)\n", p.Name, p.ID, p.PriceMonthly, yearlyCharge)
	}

	fmt.Println("Seeding complete.")
}
