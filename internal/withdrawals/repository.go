package withdrawals

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository stores withdrawal records.
type Repository interface {
	Append(ctx context.Context, record Record) error
	Get(ctx context.Context, id string) (Record, error)
	// Settle moves a pending record to a terminal status. Any other current
	// status yields a *TransitionError.
	Settle(ctx context.Context, id string, s Settlement) (Record, error)
	// ListByAccount returns every record of the account, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]Record, error)
	ListPending(ctx context.Context) ([]Record, error)
	AccountTotals(ctx context.Context, accountID string) (Totals, error)
	GlobalTotals(ctx context.Context) (Totals, error)
}

const recordColumns = `id, account_id, amount::text, address, status, requested_at, settled_at, reference, failure_reason`

// PostgresRepository stores withdrawals in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, record Record) error {
	recordID, err := uuid.Parse(record.ID)
	if err != nil {
		return err
	}
	accountID, err := uuid.Parse(record.AccountID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO withdrawal_records (id, account_id, amount, address, status, requested_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		recordID, accountID, record.Amount.String(), record.Address, string(record.Status), record.RequestedAt.UTC())
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Record, error) {
	recordID, err := uuid.Parse(id)
	if err != nil {
		return Record{}, ErrNotFound
	}
	rec, err := scanRecord(r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM withdrawal_records WHERE id = $1`, recordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepository) Settle(ctx context.Context, id string, s Settlement) (Record, error) {
	if err := checkTransition(id, StatusPending, s.Status); err != nil {
		return Record{}, err
	}
	recordID, err := uuid.Parse(id)
	if err != nil {
		return Record{}, ErrNotFound
	}
	rec, err := scanRecord(r.db.QueryRow(ctx, `UPDATE withdrawal_records
        SET status = $2, settled_at = $3, reference = $4, failure_reason = $5
        WHERE id = $1 AND status = 'pending'
        RETURNING `+recordColumns,
		recordID, string(s.Status), s.SettledAt.UTC(), s.Reference, s.Reason))
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return Record{}, getErr
		}
		return Record{}, &TransitionError{ID: id, From: current.Status, To: s.Status}
	}
	return rec, err
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]Record, error) {
	accountUUID, err := uuid.Parse(accountID)
	if err != nil {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+recordColumns+` FROM withdrawal_records
        WHERE account_id = $1 ORDER BY requested_at DESC, seq DESC`, accountUUID)
}

func (r *PostgresRepository) ListPending(ctx context.Context) ([]Record, error) {
	return r.query(ctx, `SELECT `+recordColumns+` FROM withdrawal_records
        WHERE status = 'pending' ORDER BY requested_at, seq`)
}

func (r *PostgresRepository) AccountTotals(ctx context.Context, accountID string) (Totals, error) {
	accountUUID, err := uuid.Parse(accountID)
	if err != nil {
		return Totals{Amount: decimal.Zero}, nil
	}
	return scanTotals(r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text, COUNT(*)
        FROM withdrawal_records WHERE account_id = $1`, accountUUID))
}

func (r *PostgresRepository) GlobalTotals(ctx context.Context) (Totals, error) {
	return scanTotals(r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text, COUNT(*) FROM withdrawal_records`))
}

func (r *PostgresRepository) query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec         Record
		id, owner   uuid.UUID
		amount      string
		status      string
		requestedAt time.Time
		settledAt   *time.Time
	)
	if err := row.Scan(&id, &owner, &amount, &rec.Address, &status, &requestedAt, &settledAt, &rec.Reference, &rec.FailureReason); err != nil {
		return Record{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Record{}, err
	}
	rec.ID = id.String()
	rec.AccountID = owner.String()
	rec.Amount = parsed
	rec.Status = Status(status)
	rec.RequestedAt = requestedAt.UTC()
	if settledAt != nil {
		at := settledAt.UTC()
		rec.SettledAt = &at
	}
	return rec, nil
}

func scanTotals(row rowScanner) (Totals, error) {
	var (
		sum   string
		count int
	)
	if err := row.Scan(&sum, &count); err != nil {
		return Totals{}, err
	}
	amount, err := decimal.NewFromString(sum)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Amount: amount, Count: count}, nil
}

func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RequestedAt.After(records[j].RequestedAt)
	})
}
