package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/suwandre/depthwatch/internal/aggregator"
	"github.com/suwandre/depthwatch/internal/exchange"
	"github.com/suwandre/depthwatch/internal/metrics"
	"github.com/suwandre/depthwatch/internal/models"
)

// Target is one exchange to snapshot. Empty Pairs means every active pair the
// exchange lists; zero Depth means the exchange's default depth.
type Target struct {
	Exchange exchange.Exchange
	Pairs    []string
	Depth    int
}

type Scheduler struct {
	targets  []Target
	interval time.Duration
	cache    map[string]*models.Snapshot
	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewScheduler(targets []Target, interval time.Duration) *Scheduler {
	return &Scheduler{
		targets:  targets,
		interval: interval,
		cache:    make(map[string]*models.Snapshot),
		stopCh:   make(chan struct{}),
	}
}

// Begins the polling loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		// Full listings can take a while under the rate limits, so the first
		// refresh runs here rather than blocking startup.
		s.Refresh(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Refresh(ctx)
			case <-ctx.Done():
				log.Info().Msg("scheduler stopped")
				return
			case <-s.stopCh:
				log.Info().Msg("scheduler stopped")
				return
			}
		}
	}()

	log.Info().
		Stringer("interval", s.interval).
		Int("exchanges", len(s.targets)).
		Msg("scheduler started")
}

// Signals the background goroutine to exit cleanly. Safe to call twice.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Returns the latest cached snapshot for an exchange.
func (s *Scheduler) GetSnapshot(exchangeName string) (*models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.cache[exchangeName]
	return snap, ok
}

// Refresh snapshots every target concurrently and updates the cache.
// A failing exchange keeps its previous snapshot.
func (s *Scheduler) Refresh(ctx context.Context) {
	var wg sync.WaitGroup

	for _, t := range s.targets {
		wg.Add(1)

		go func(t Target) {
			defer wg.Done()

			name := t.Exchange.Name()
			snap, err := s.snapshot(ctx, t)
			if err != nil {
				log.Error().Err(err).Str("exchange", name).Msg("scheduler refresh failed")
				return
			}

			s.mu.Lock()
			s.cache[name] = snap
			s.mu.Unlock()

			metrics.SnapshotPairs.WithLabelValues(name).Set(float64(len(snap.OrderBooks)))
			log.Info().
				Str("exchange", name).
				Int("orderbooks", len(snap.OrderBooks)).
				Int("failed", len(snap.Failed)).
				Msg("cache refreshed")
		}(t)
	}

	wg.Wait()
}

func (s *Scheduler) snapshot(ctx context.Context, t Target) (*models.Snapshot, error) {
	ex := t.Exchange

	depth := t.Depth
	if depth == 0 {
		depth = ex.DefaultDepth()
	}

	var pairs []models.TradingPair
	if len(t.Pairs) > 0 {
		pairs = make([]models.TradingPair, len(t.Pairs))
		for i, symbol := range t.Pairs {
			pairs[i] = models.TradingPair{Symbol: symbol}
		}
	} else {
		listed, err := ex.ListTradingPairs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list trading pairs: %w", err)
		}
		pairs = listed
	}

	results, err := aggregator.GetAllOrderBooks(ctx, ex, pairs, depth)
	if err != nil {
		return nil, fmt.Errorf("aggregate orderbooks: %w", err)
	}

	return &models.Snapshot{
		Exchange:   ex.Name(),
		Depth:      depth,
		OrderBooks: aggregator.Successful(results),
		Failed:     aggregator.Failed(results),
		UpdatedAt:  time.Now(),
	}, nil
}
