package transport

import (
	"sync"
	"time"
)

// Budget is a shrinking wall-clock allowance shared by sequential attempts.
// It is safe for concurrent use, though attempts never overlap.
type Budget struct {
	mu    sync.Mutex
	total time.Duration
	spent time.Duration
}

func NewBudget(total time.Duration) *Budget {
	return &Budget{total: total}
}

// Remaining never goes below zero.
func (b *Budget) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.spent >= b.total {
		return 0
	}
	return b.total - b.spent
}

func (b *Budget) Spend(d time.Duration) {
	if d <= 0 {
		return
	}
	b.mu.Lock()
	b.spent += d
	b.mu.Unlock()
}

func (b *Budget) Spent() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}

// Allot returns min(limit, remaining-reserve), or zero when nothing is left.
func (b *Budget) Allot(limit, reserve time.Duration) time.Duration {
	d := b.Remaining() - reserve
	if limit > 0 && d > limit {
		d = limit
	}
	if d < 0 {
		return 0
	}
	return d
}
