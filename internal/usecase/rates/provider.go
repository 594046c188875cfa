package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simaogato/wealthflow-planner/internal/domain"
	"github.com/simaogato/wealthflow-planner/internal/logger"
)

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// CachedProvider wraps an external rate provider. Live lookups are cached and
// appended to the rate history; when the provider fails the last-known-good value is
// served instead, however stale, so plan calculation is never blocked.
type CachedProvider struct {
	Upstream    domain.RateProvider
	HistoryRepo domain.RateHistoryRepository
	TTL         time.Duration

	log   *zap.SugaredLogger
	now   func() time.Time
	mu    sync.RWMutex
	cache map[string]cachedRate
}

// NewCachedProvider creates a new CachedProvider instance.
// historyRepo may be nil when rate history is not persisted.
func NewCachedProvider(upstream domain.RateProvider, historyRepo domain.RateHistoryRepository, ttl time.Duration, log *zap.SugaredLogger) *CachedProvider {
	return &CachedProvider{
		Upstream:    upstream,
		HistoryRepo: historyRepo,
		TTL:         ttl,
		log:         logger.OrNop(log),
		now:         time.Now,
		cache:       make(map[string]cachedRate),
	}
}

// Rate returns the current rate for from -> to
// Logic:
//  1. Same currency is always 1
//  2. A fresh cache entry is returned as is
//  3. Otherwise ask the upstream provider, cache and record the answer
//  4. On upstream failure fall back to the stale cache entry, then to rate history
func (p *CachedProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return decimal.NewFromInt(1), nil
	}

	key := domain.RatePair(from, to)
	now := p.now()

	p.mu.RLock()
	cached, ok := p.cache[key]
	p.mu.RUnlock()
	if ok && now.Sub(cached.fetchedAt) < p.TTL {
		return cached.rate, nil
	}

	rate, err := p.Upstream.Rate(ctx, from, to)
	if err == nil {
		p.store(ctx, from, to, rate, now)
		return rate, nil
	}

	if ok {
		p.log.Warnw("rate provider failed, serving stale cached rate",
			"pair", key, "age", now.Sub(cached.fetchedAt).String(), "error", err)
		return cached.rate, nil
	}

	if p.HistoryRepo != nil {
		snapshot, histErr := p.HistoryRepo.GetLatest(ctx, from, to, now)
		if histErr == nil {
			p.log.Warnw("rate provider failed, serving last recorded rate",
				"pair", key, "recorded_at", snapshot.RecordedAt, "error", err)
			return snapshot.Rate, nil
		}
	}

	return decimal.Zero, fmt.Errorf("%w for %s: %v", domain.ErrRateUnavailable, key, err)
}

// RateAt returns the rate in effect at the given instant: the latest recorded rate at
// or before at, falling back to the current rate when history has nothing.
func (p *CachedProvider) RateAt(ctx context.Context, from, to string, at time.Time) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return decimal.NewFromInt(1), nil
	}

	if p.HistoryRepo != nil {
		snapshot, err := p.HistoryRepo.GetLatest(ctx, from, to, at)
		if err == nil {
			return snapshot.Rate, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Warnw("rate history lookup failed", "pair", domain.RatePair(from, to), "error", err)
		}
	}

	return p.Rate(ctx, from, to)
}

// Invalidate drops every cached rate
func (p *CachedProvider) Invalidate() {
	p.mu.Lock()
	p.cache = make(map[string]cachedRate)
	p.mu.Unlock()
}

func (p *CachedProvider) store(ctx context.Context, from, to string, rate decimal.Decimal, now time.Time) {
	p.mu.Lock()
	p.cache[domain.RatePair(from, to)] = cachedRate{rate: rate, fetchedAt: now}
	p.mu.Unlock()

	if p.HistoryRepo == nil {
		return
	}
	snapshot := &domain.RateSnapshot{
		ID:         uuid.New(),
		From:       from,
		To:         to,
		Rate:       rate,
		RecordedAt: now,
	}
	if err := p.HistoryRepo.Add(ctx, snapshot); err != nil {
		p.log.Warnw("failed to record rate history", "pair", domain.RatePair(from, to), "error", err)
	}
}
