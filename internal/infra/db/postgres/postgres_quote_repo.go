package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
)

var _ repository.QuoteRepository = (*quoteRepo)(nil)

type quoteRepo struct{ pool *pgxpool.Pool }

func NewQuoteRepo(pool *pgxpool.Pool) *quoteRepo {
	return &quoteRepo{pool: pool}
}

const quoteColumns = `id, user_id, plan, price_amount, currency, is_paid, paid_reference, created_at, paid_at`

func (r *quoteRepo) Save(ctx context.Context, tx repository.Tx, q *model.Quote) error {
	const sql = `
INSERT INTO quotes (id, user_id, plan, price_amount, currency, is_paid, paid_reference, created_at, paid_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  plan=$3, price_amount=$4, currency=$5, is_paid=$6, paid_reference=$7, paid_at=$9;`
	_, err := execSQL(ctx, r.pool, tx, sql, q.ID, q.UserID, string(q.Plan), q.Price.Amount, q.Price.Currency, q.IsPaid, q.PaidReference, q.CreatedAt, q.PaidAt)
	if err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *quoteRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Quote, error) {
	sql := forUpdate(`SELECT `+quoteColumns+` FROM quotes WHERE id=$1`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, sql, id)
	if err != nil {
		return nil, err
	}
	q, err := scanQuote(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return q, nil
}

func (r *quoteRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Quote, error) {
	const sql = `SELECT ` + quoteColumns + ` FROM quotes WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, sql, userID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// MarkPaidIfUnpaid flips is_paid exactly once.
func (r *quoteRepo) MarkPaidIfUnpaid(ctx context.Context, tx repository.Tx, id, reference string, at time.Time) (bool, error) {
	const sql = `UPDATE quotes SET is_paid=TRUE, paid_reference=$2, paid_at=$3 WHERE id=$1 AND NOT is_paid;`
	cmd, err := execSQL(ctx, r.pool, tx, sql, id, reference, at)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func scanQuote(row pgx.Row) (*model.Quote, error) {
	var (
		q    model.Quote
		plan string
	)
	if err := row.Scan(&q.ID, &q.UserID, &plan, &q.Price.Amount, &q.Price.Currency, &q.IsPaid, &q.PaidReference, &q.CreatedAt, &q.PaidAt); err != nil {
		return nil, err
	}
	q.Plan = model.QuotePlan(plan)
	return &q, nil
}
