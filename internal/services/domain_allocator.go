package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/vanishmail/vanishmail-backend/internal/models"
	"github.com/vanishmail/vanishmail-backend/internal/repository"
)

// DomainAllocator hands out mailbox domains from the fixed allow-list
// in round-robin order, persisted via a shared counter. Each domain is
// served for repeatFactor consecutive allocations before the rotation
// advances, which spreads load while keeping recent traffic per domain
// easy to reason about.
type DomainAllocator struct {
	kv           repository.KVRepository
	domains      []string
	repeatFactor int64
	logger       *slog.Logger

	// dispatch runs the counter bump. The default detaches it from the
	// request so allocation latency never includes the write.
	dispatch func(func())
}

// NewDomainAllocator creates a new DomainAllocator
func NewDomainAllocator(kv repository.KVRepository, domains []string, repeatFactor int, logger *slog.Logger) *DomainAllocator {
	return &DomainAllocator{
		kv:           kv,
		domains:      domains,
		repeatFactor: int64(repeatFactor),
		logger:       logger,
		dispatch:     func(fn func()) { go fn() },
	}
}

// Next returns the domain for the current counter position and bumps
// the counter. The bump is fire-and-forget: concurrent allocations may
// briefly see the same position (bounded staleness is acceptable), but
// the stored counter never moves backward.
func (a *DomainAllocator) Next(ctx context.Context) string {
	counter := a.read(ctx)
	domain := a.domains[(counter/a.repeatFactor)%int64(len(a.domains))]

	a.dispatch(func() { a.bump(counter + 1) })

	return domain
}

func (a *DomainAllocator) read(ctx context.Context) int64 {
	state, err := repository.GetJSON[models.DomainCounter](ctx, a.kv, models.KeyDomainCounter)
	if err != nil {
		return 0
	}
	return state.Counter
}

// bump advances the counter to at least next. Re-reading before the
// write keeps the counter monotonic when bumps land out of order:
// last-write-wins can drop an increment, never rewind the rotation.
func (a *DomainAllocator) bump(next int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if current := a.read(ctx); current >= next {
		next = current + 1
	}

	state := &models.DomainCounter{Counter: next}
	if err := repository.PutJSON(ctx, a.kv, models.KeyDomainCounter, state, 0); err != nil && a.logger != nil {
		a.logger.Warn("failed to persist domain counter", slog.Any("error", err))
	}
}
