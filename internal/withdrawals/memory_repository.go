package withdrawals

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type memoryRepository struct {
	mu      sync.RWMutex
	records []Record
	index   map[string]int
}

// NewMemoryRepository constructs an in-memory withdrawal store.
func NewMemoryRepository() Repository {
	return &memoryRepository{index: make(map[string]int)}
}

func (r *memoryRepository) Append(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index[record.ID] = len(r.records)
	r.records = append(r.records, record)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r.records[i], nil
}

func (r *memoryRepository) Settle(_ context.Context, id string, s Settlement) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec := r.records[i]
	if err := checkTransition(id, rec.Status, s.Status); err != nil {
		return Record{}, err
	}
	at := s.SettledAt
	rec.Status = s.Status
	rec.SettledAt = &at
	rec.Reference = s.Reference
	rec.FailureReason = s.Reason
	r.records[i] = rec
	return rec, nil
}

func (r *memoryRepository) ListByAccount(_ context.Context, accountID string) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Record
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].AccountID == accountID {
			out = append(out, r.records[i])
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *memoryRepository) ListPending(_ context.Context) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Record
	for _, rec := range r.records {
		if rec.Status == StatusPending {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryRepository) AccountTotals(_ context.Context, accountID string) (Totals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t := Totals{Amount: decimal.Zero}
	for _, rec := range r.records {
		if rec.AccountID == accountID {
			t.Amount = t.Amount.Add(rec.Amount)
			t.Count++
		}
	}
	return t, nil
}

func (r *memoryRepository) GlobalTotals(_ context.Context) (Totals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t := Totals{Amount: decimal.Zero}
	for _, rec := range r.records {
		t.Amount = t.Amount.Add(rec.Amount)
		t.Count++
	}
	return t, nil
}
