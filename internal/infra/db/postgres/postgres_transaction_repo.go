package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `id, reference, user_id, payable_type, payable_id, amount, currency, gateway, status, gateway_status, meta::text, created_at, updated_at, resolved_at`

func (r *transactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (
  id, reference, user_id, payable_type, payable_id, amount, currency, gateway, status, gateway_status, meta, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12,$13
);`
	var payableType, payableID *string
	if t.Payable != nil {
		k, id := string(t.Payable.Kind), t.Payable.ID
		payableType, payableID = &k, &id
	}
	meta, err := encodeMeta(t.Meta)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		t.ID, t.Reference, t.UserID, payableType, payableID, t.Amount.Amount, t.Amount.Currency,
		string(t.Gateway), string(t.Status), t.GatewayStatus, meta, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *transactionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
	q := forUpdate(`SELECT `+transactionColumns+` FROM transactions WHERE reference=$1`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, reference)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return t, nil
}

// TransitionIfPending is the single conditional write out of pending.
func (r *transactionRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, reference string, to model.TransactionStatus, rawStatus string, at time.Time) (bool, error) {
	const q = `
UPDATE transactions
   SET status = $2,
       gateway_status = $3,
       updated_at = $4,
       resolved_at = $4
 WHERE reference = $1
   AND status = 'pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, reference, string(to), rawStatus, at)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *transactionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.Transaction, error) {
	return r.List(ctx, tx, repository.TransactionFilter{UserID: userID, Limit: limit, Offset: offset})
}

func (r *transactionRepo) List(ctx context.Context, tx repository.Tx, f repository.TransactionFilter) ([]*model.Transaction, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id=$%d", f.UserID)
	}
	if f.Status != "" {
		add("status=$%d", string(f.Status))
	}
	if f.Gateway != "" {
		add("gateway=$%d", string(f.Gateway))
	}
	q := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	args = append(args, f.Limit, max(f.Offset, 0))
	q += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d;", len(args)-1, len(args))
	return r.query(ctx, tx, q, args...)
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.query(ctx, tx, q, olderThan, limit)
}

func (r *transactionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.TransactionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM transactions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make(map[model.TransactionStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.TransactionStatus(status)] = n
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func (r *transactionRepo) query(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Transaction, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t                      model.Transaction
		payableType, payableID *string
		gateway, status, meta  string
	)
	if err := row.Scan(&t.ID, &t.Reference, &t.UserID, &payableType, &payableID, &t.Amount.Amount, &t.Amount.Currency,
		&gateway, &status, &t.GatewayStatus, &meta, &t.CreatedAt, &t.UpdatedAt, &t.ResolvedAt); err != nil {
		return nil, err
	}
	t.Gateway = model.Gateway(gateway)
	t.Status = model.TransactionStatus(status)
	if payableType != nil && payableID != nil {
		t.Payable = &model.PayableRef{Kind: model.PayableKind(*payableType), ID: *payableID}
	}
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &t.Meta); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func encodeMeta(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
