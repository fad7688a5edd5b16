package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
)

var _ repository.PackageRepository = (*packageRepo)(nil)

type packageRepo struct{ pool *pgxpool.Pool }

func NewPackageRepo(pool *pgxpool.Pool) *packageRepo {
	return &packageRepo{pool: pool}
}

func (r *packageRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPackage) error {
	const q = `
INSERT INTO subscription_packages (id, name, description, price_monthly, price_yearly, currency, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  name=$2, description=$3, price_monthly=$4, price_yearly=$5, currency=$6;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.Description, p.PriceMonthly.Amount, p.PriceYearly.Amount, p.PriceMonthly.Currency, p.CreatedAt)
	if err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *packageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPackage, error) {
	const q = `SELECT id, name, description, price_monthly, price_yearly, currency, created_at FROM subscription_packages WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p, err := scanPackage(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

func (r *packageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPackage, error) {
	const q = `SELECT id, name, description, price_monthly, price_yearly, currency, created_at FROM subscription_packages ORDER BY price_monthly ASC, name;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.SubscriptionPackage
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPackage(row pgx.Row) (*model.SubscriptionPackage, error) {
	var (
		p               model.SubscriptionPackage
		monthly, yearly int64
		currency        string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &monthly, &yearly, &currency, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.PriceMonthly = model.NewMoney(monthly, currency)
	if yearly > 0 {
		p.PriceYearly = model.NewMoney(yearly, currency)
	}
	return &p, nil
}
