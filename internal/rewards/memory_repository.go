package rewards

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type memoryRepository struct {
	mu        sync.RWMutex
	byAccount map[string][]Record
	total     Totals
}

// NewMemoryRepository constructs an in-memory append-only reward log.
func NewMemoryRepository() Repository {
	return &memoryRepository{byAccount: make(map[string][]Record), total: Totals{Amount: decimal.Zero}}
}

func (r *memoryRepository) Append(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAccount[record.AccountID] = append(r.byAccount[record.AccountID], record)
	r.total.Amount = r.total.Amount.Add(record.Amount)
	r.total.Count++
	return nil
}

func (r *memoryRepository) ListByAccount(_ context.Context, accountID string, limit int) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.byAccount[accountID]
	out := make([]Record, 0, min(len(records), limit))
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *memoryRepository) AccountTotals(_ context.Context, accountID string) (Totals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t := Totals{Amount: decimal.Zero}
	for _, rec := range r.byAccount[accountID] {
		t.Amount = t.Amount.Add(rec.Amount)
		t.Count++
	}
	return t, nil
}

func (r *memoryRepository) GlobalTotals(_ context.Context) (Totals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total, nil
}
