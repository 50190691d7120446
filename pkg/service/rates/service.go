// Package rates is the read-through rate cache in front of the remote
// currency service. Concurrent requests for the same table share one remote
// call, and invalidation guarantees that a response started earlier is never
// written back over the invalidated entry.
package rates

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/subsy/fx/pkg/cache"
	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/exchange/crossrate"
	"github.com/subsy/fx/pkg/money"
	"github.com/subsy/fx/pkg/provider/exchange"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a fetched table is served before refetching.
	DefaultTTL = 15 * time.Minute
	// DefaultFetchTimeout bounds a single remote rate fetch.
	DefaultFetchTimeout = 10 * time.Second

	allTargets = "*"
)

// Options tunes a Service. Zero values select the defaults, except TTL
// where a negative value means entries live until invalidated.
type Options struct {
	TTL          time.Duration
	FetchTimeout time.Duration
}

// Service fetches and caches rate tables per (base, targets) key.
type Service struct {
	fetcher      exchange.RateFetcher
	store        cache.RateStore
	logger       *slog.Logger
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	epoch uint64
	// inflight holds an entry per key with a running fetch and is emptied
	// as fetches finish.
	inflight map[string]*flightState
}

type flightState struct {
	gen     uint64
	running int
}

type generation struct {
	epoch uint64
	key   uint64
}

// New creates a rate service backed by fetcher and store.
func New(
	fetcher exchange.RateFetcher,
	store cache.RateStore,
	opts Options,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.TTL
	switch {
	case ttl == 0:
		ttl = DefaultTTL
	case ttl < 0:
		ttl = 0
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Service{
		fetcher:      fetcher,
		store:        store,
		logger:       logger.With("component", "rates"),
		ttl:          ttl,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
		inflight:     make(map[string]*flightState),
	}
}

// Key returns the cache key for base and targets: "BASE|T1,T2" with targets
// sorted and de-duplicated, or "BASE|*" when no targets are given.
func Key(base money.Code, targets []money.Code) string {
	if len(targets) == 0 {
		return base.String() + "|" + allTargets
	}
	return base.String() + "|" + money.JoinCodes(money.SortedUnique(targets), ",")
}

// GetRates returns the rate table for base, optionally limited to targets.
// An empty base means the feature is disabled and yields (nil, nil).
func (s *Service) GetRates(
	ctx context.Context,
	base money.Code,
	targets []money.Code,
) (*core.RateSnapshot, error) {
	if base == "" {
		return nil, nil
	}
	if !base.IsValid() {
		return nil, fmt.Errorf("%w: %q", money.ErrInvalidCurrency, base)
	}
	for _, t := range targets {
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: %q", money.ErrInvalidCurrency, t)
		}
	}
	targets = money.SortedUnique(targets)
	key := Key(base, targets)
	log := s.logger.With("key", key)

	if snap := s.lookup(ctx, key); snap != nil {
		log.Debug("Rate cache hit")
		return snap, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		return s.fetch(ctx, key, base, targets)
	})

	select {
	case <-ctx.Done():
		log.Debug("Caller abandoned rate fetch", "error", ctx.Err())
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debug("Joined in-flight rate fetch")
		}
		return res.Val.(*core.RateSnapshot).Clone(), nil
	}
}

// fetch runs once per key at a time. It outlives the caller that started it
// so other waiters still get a result.
func (s *Service) fetch(
	parent context.Context,
	key string,
	base money.Code,
	targets []money.Code,
) (*core.RateSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.fetchTimeout)
	defer cancel()

	gen := s.generation(key)
	defer s.release(key)

	// A flight that finished just before this one started has already
	// stored the table.
	if snap := s.lookup(ctx, key); snap != nil {
		return snap, nil
	}

	log := s.logger.With("key", key, "provider", providerName(s.fetcher))
	start := s.now()
	resp, err := s.fetcher.FetchRates(ctx, base, targets)
	if err != nil {
		log.Warn("Failed to fetch rates from provider", "error", err)
		return nil, fmt.Errorf("fetch rates %s: %w", key, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("fetch rates %s: %w: empty response", key, core.ErrProviderUnavailable)
	}

	snap := &core.RateSnapshot{
		Base:      base,
		Rates:     s.usableRates(log, resp.Rates),
		Timestamp: resp.Timestamp,
		FetchedAt: s.now().UTC(),
		Source:    providerName(s.fetcher),
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = snap.FetchedAt
	}

	if !s.commit(ctx, log, key, gen, snap) {
		log.Info("Rates invalidated during fetch, not caching response")
		return snap, nil
	}
	log.Info("Fetched exchange rates",
		"rates", len(snap.Rates),
		"duration", s.now().Sub(start),
	)
	return snap, nil
}

// Invalidate drops the cached table for base and targets. A fetch for the
// same key that is already running will not be cached.
func (s *Service) Invalidate(ctx context.Context, base money.Code, targets []money.Code) error {
	if base == "" {
		return nil
	}
	key := Key(base, targets)

	s.mu.Lock()
	if st, ok := s.inflight[key]; ok {
		st.gen++
	}
	s.mu.Unlock()
	s.group.Forget(key)

	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	s.logger.Info("Rates invalidated", "key", key)
	return nil
}

// InvalidateAll drops every cached table.
func (s *Service) InvalidateAll(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	inflight := make([]string, 0, len(s.inflight))
	for key := range s.inflight {
		inflight = append(inflight, key)
	}
	s.mu.Unlock()
	for _, key := range inflight {
		s.group.Forget(key)
	}

	if s.store == nil {
		return nil
	}
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("invalidate all: %w", err)
	}
	s.logger.Info("All rates invalidated")
	return nil
}

func (s *Service) lookup(ctx context.Context, key string) *core.RateSnapshot {
	if s.store == nil {
		return nil
	}
	snap, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Rate cache read failed, treating as miss", "key", key, "error", err)
		return nil
	}
	return snap
}

// commit stores snap unless key was invalidated after gen was taken. The
// lock is held across the write so an invalidation cannot slip in between.
func (s *Service) commit(
	ctx context.Context,
	log *slog.Logger,
	key string,
	gen generation,
	snap *core.RateSnapshot,
) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.inflight[key]
	if !ok || (generation{epoch: s.epoch, key: st.gen}) != gen {
		return false
	}
	if s.store != nil {
		if err := s.store.Set(ctx, key, snap, s.ttl); err != nil {
			log.Error("Failed to cache rates", "error", err)
		}
	}
	return true
}

// generation registers a running fetch for key and returns the generation
// its result must still match to be stored. Every call is paired with
// release.
func (s *Service) generation(key string) generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.inflight[key]
	if !ok {
		st = &flightState{}
		s.inflight[key] = st
	}
	st.running++
	return generation{epoch: s.epoch, key: st.gen}
}

func (s *Service) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.inflight[key]
	if !ok {
		return
	}
	st.running--
	if st.running <= 0 {
		delete(s.inflight, key)
	}
}

func (s *Service) usableRates(log *slog.Logger, in core.RateTable) core.RateTable {
	out := make(core.RateTable, len(in))
	for code, rate := range in {
		if !crossrate.Usable(rate) {
			log.Warn("Dropping invalid rate from provider", "currency", code, "rate", rate)
			continue
		}
		out[money.Code(strings.ToUpper(string(code)))] = rate
	}
	return out
}

func providerName(v any) string {
	if p, ok := v.(interface{ Name() string }); ok {
		return p.Name()
	}
	return "unknown"
}
