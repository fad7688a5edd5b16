package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, package_id, cadence, price_amount, currency, status, start_date, end_date, reference, created_at, activated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error {
	const q = `
INSERT INTO user_subscriptions (
  id, user_id, package_id, cadence, price_amount, currency, status, start_date, end_date, reference, created_at, activated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  status=$7, start_date=$8, end_date=$9, reference=$10, activated_at=$12;`
	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PackageID, string(s.Cadence), s.Price.Amount, s.Price.Currency, string(s.Status),
		s.StartDate, s.EndDate, s.Reference, s.CreatedAt, s.ActivatedAt)
	if err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UserSubscription, error) {
	q := forUpdate(`SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE id=$1`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return s, nil
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.UserSubscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM user_subscriptions WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.UserSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *subscriptionRepo) CountActiveByPackage(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	const q = `SELECT package_id, COUNT(*) FROM user_subscriptions WHERE status='active' GROUP BY package_id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			pkg string
			n   int
		)
		if err := rows.Scan(&pkg, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[pkg] = n
	}
	return out, rows.Err()
}

func scanSubscription(row pgx.Row) (*model.UserSubscription, error) {
	var (
		s               model.UserSubscription
		cadence, status string
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.PackageID, &cadence, &s.Price.Amount, &s.Price.Currency, &status,
		&s.StartDate, &s.EndDate, &s.Reference, &s.CreatedAt, &s.ActivatedAt); err != nil {
		return nil, err
	}
	s.Cadence = model.Cadence(cadence)
	s.Status = model.SubscriptionStatus(status)
	return &s, nil
}
