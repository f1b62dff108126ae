package rewards

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository is the append-only reward log keyed by account.
type Repository interface {
	Append(ctx context.Context, record Record) error
	// ListByAccount returns at most limit records, newest first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]Record, error)
	AccountTotals(ctx context.Context, accountID string) (Totals, error)
	GlobalTotals(ctx context.Context) (Totals, error)
}

// PostgresRepository stores reward records in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts a reward record.
func (r *PostgresRepository) Append(ctx context.Context, record Record) error {
	recordID, err := uuid.Parse(record.ID)
	if err != nil {
		return err
	}
	accountID, err := uuid.Parse(record.AccountID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO reward_records (id, account_id, method, amount, claimed_at)
        VALUES ($1, $2, $3, $4, $5)`, recordID, accountID, record.Method, record.Amount.String(), record.ClaimedAt.UTC())
	return err
}

// ListByAccount returns the newest records for an account.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]Record, error) {
	accountUUID, err := uuid.Parse(accountID)
	if err != nil {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, account_id, method, amount::text, claimed_at
        FROM reward_records WHERE account_id = $1 ORDER BY claimed_at DESC, seq DESC LIMIT $2`, accountUUID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			id, owner uuid.UUID
			amount    string
			claimedAt time.Time
		)
		if err := rows.Scan(&id, &owner, &rec.Method, &amount, &claimedAt); err != nil {
			return nil, err
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		rec.ID = id.String()
		rec.AccountID = owner.String()
		rec.ClaimedAt = claimedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AccountTotals sums the rewards of one account.
func (r *PostgresRepository) AccountTotals(ctx context.Context, accountID string) (Totals, error) {
	accountUUID, err := uuid.Parse(accountID)
	if err != nil {
		return Totals{Amount: decimal.Zero}, nil
	}
	return scanTotals(r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text, COUNT(*)
        FROM reward_records WHERE account_id = $1`, accountUUID))
}

// GlobalTotals sums the rewards of every account.
func (r *PostgresRepository) GlobalTotals(ctx context.Context) (Totals, error) {
	return scanTotals(r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text, COUNT(*) FROM reward_records`))
}

type rowScanner interface {
	Scan(dest ...any) error
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
		return records[i].ClaimedAt.After(records[j].ClaimedAt)
	})
}
