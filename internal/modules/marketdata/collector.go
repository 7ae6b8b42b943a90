package marketdata

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Data points older than this are purged by the housekeeping pass.
const retentionWindow = 6 * 30 * 24 * time.Hour // ~6 months

// ErrCycleInProgress is returned by TriggerCollection when a cycle is
// already running. Callers treat it as a benign outcome, not a failure.
var ErrCycleInProgress = errors.New("collection cycle already in progress")

// normalizerRunner and aggregatorRunner decouple the collector from the
// concrete pipeline stages so tests can substitute them.
type normalizerRunner interface {
	Run(now time.Time) (CycleSummary, error)
}

type aggregatorRunner interface {
	Run(now time.Time) error
}

type retentionStore interface {
	PurgeOlderThan(cutoff time.Time) (int64, error)
}

// Collector drives the collection pipeline: one cycle immediately on start
// and then one per interval, with at most one cycle in flight at any time.
// The timer path and the HTTP trigger path share the same single-flight
// guard.
type Collector struct {
	normalizer normalizerRunner
	aggregator aggregatorRunner
	store      retentionStore
	interval   time.Duration
	log        zerolog.Logger

	mu      sync.Mutex // guards cron/running
	cron    *cron.Cron
	running bool

	inProgress atomic.Bool
}

// NewCollector creates a new collector
func NewCollector(normalizer normalizerRunner, aggregator aggregatorRunner, store retentionStore, interval time.Duration, log zerolog.Logger) *Collector {
	return &Collector{
		normalizer: normalizer,
		aggregator: aggregator,
		store:      store,
		interval:   interval,
		log:        log.With().Str("component", "collector").Logger(),
	}
}

// Start begins periodic collection and returns immediately. The first cycle
// runs right away; calling Start while already running is a no-op that logs
// a warning.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.log.Warn().Msg("Market data collector is already running")
		return
	}

	c.cron = cron.New()
	if _, err := c.cron.AddFunc(fmt.Sprintf("@every %s", c.interval), func() {
		if _, err := c.collect(time.Now()); err != nil && !errors.Is(err, ErrCycleInProgress) {
			c.log.Error().Err(err).Msg("Scheduled collection cycle failed")
		}
	}); err != nil {
		// Only reachable with a malformed interval; surface loudly.
		c.log.Error().Err(err).Msg("Failed to schedule collection cycle")
		return
	}
	c.cron.Start()
	c.running = true

	c.log.Info().Dur("interval", c.interval).Msg("Starting market data collector")

	// Run immediately on start
	go func() {
		if _, err := c.collect(time.Now()); err != nil && !errors.Is(err, ErrCycleInProgress) {
			c.log.Error().Err(err).Msg("Initial collection cycle failed")
		}
	}()
}

// Stop cancels the timer. An in-flight cycle is allowed to finish.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	c.cron.Stop()
	c.cron = nil
	c.running = false
	c.log.Info().Msg("Market data collector stopped")
}

// TriggerCollection runs one cycle on behalf of an API caller. It shares
// the scheduler's single-flight guard; when a cycle is already in flight it
// returns ErrCycleInProgress.
func (c *Collector) TriggerCollection() (CycleSummary, error) {
	return c.collect(time.Now())
}

// collect runs one full cycle: normalize, aggregate competitors, purge
// expired points. The guard is cleared on every exit path so a failed cycle
// never locks out future ones.
func (c *Collector) collect(now time.Time) (CycleSummary, error) {
	if !c.inProgress.CompareAndSwap(false, true) {
		c.log.Debug().Msg("Collection cycle already in progress, skipping")
		return CycleSummary{}, ErrCycleInProgress
	}
	defer c.inProgress.Store(false)

	c.log.Info().Msg("Starting market data collection cycle")

	summary, err := c.normalizer.Run(now)
	if err != nil {
		// Cycle abandoned; the next tick retries from the markers.
		c.log.Error().Err(err).Msg("Market data collection failed")
		return CycleSummary{}, err
	}

	if err := c.aggregator.Run(now); err != nil {
		// Annotation is best-effort within a cycle; points stay eligible
		// for the next pass.
		c.log.Error().Err(err).Msg("Competitor analysis update failed")
	}

	if deleted, err := c.store.PurgeOlderThan(now.Add(-retentionWindow)); err != nil {
		c.log.Error().Err(err).Msg("Retention purge failed")
	} else if deleted > 0 {
		c.log.Info().Int64("deleted", deleted).Msg("Purged expired market data points")
	}

	c.log.Info().
		Int("transactions_processed", summary.TransactionsProcessed).
		Int("data_points_created", summary.DataPointsCreated).
		Msg("Market data collection completed")

	return summary, nil
}
