package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"optionscope/interfaces"

	"github.com/sirupsen/logrus"
)

// PollingConfig holds the scheduler's tunable constants.
type PollingConfig struct {
	Interval             time.Duration
	RiskFreeRate         float64
	FetchTimeout         time.Duration
	MaxConcurrentFetches int
}

// DefaultPollingConfig polls every 30 minutes at a 5% risk-free rate.
func DefaultPollingConfig() PollingConfig {
	return PollingConfig{
		Interval:             30 * time.Minute,
		RiskFreeRate:         0.05,
		FetchTimeout:         15 * time.Second,
		MaxConcurrentFetches: 4,
	}
}

// EntryResult reports the outcome of polling one watchlist entry.
type EntryResult struct {
	WatchlistID    uint                      `json:"watchlist_id"`
	Symbol         string                    `json:"symbol"`
	ContractSymbol string                    `json:"contract_symbol,omitempty"`
	Premium        float64                   `json:"premium"`
	Pricing        *interfaces.PricingResult `json:"pricing,omitempty"`
	EVSkipped      bool                      `json:"ev_skipped,omitempty"`
	Err            error                     `json:"-"`
	Error          string                    `json:"error,omitempty"`
}

// CycleSummary aggregates one poll cycle. Succeeded entries had a premium row
// written; skipped entries had no matching contract; failed entries hit a
// gateway, pricing or persistence error.
type CycleSummary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Results   []EntryResult `json:"results"`
}

// tickerFactory abstracts time.NewTicker so tests can drive ticks manually.
type tickerFactory func(d time.Duration) (<-chan time.Time, func())

func newRealTicker(d time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(d)
	return ticker.C, ticker.Stop
}

// PollingManager periodically recomputes premium and expected value for every
// option entry on the watchlist. One instance is created at process start
// with its collaborators injected; it owns the polling loop's lifetime.
type PollingManager struct {
	store      interfaces.WatchlistStore
	recorder   interfaces.HistoryRecorder
	marketData interfaces.MarketDataService
	gate       *MarketHoursGate
	cfg        PollingConfig
	logger     *logrus.Logger

	now       func() time.Time
	newTicker tickerFactory

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	// Serializes history writes within a cycle.
	writeMu sync.Mutex
}

// NewPollingManager creates a new polling manager
func NewPollingManager(
	store interfaces.WatchlistStore,
	recorder interfaces.HistoryRecorder,
	marketData interfaces.MarketDataService,
	gate *MarketHoursGate,
	cfg PollingConfig,
) *PollingManager {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &PollingManager{
		store:      store,
		recorder:   recorder,
		marketData: marketData,
		gate:       gate,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		newTicker:  newRealTicker,
	}
}

// Start launches the recurring poll loop. Calling Start on a running manager
// has no additional effect.
func (pm *PollingManager) Start() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.running {
		pm.logger.Warn("Polling manager already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	pm.cancel = cancel
	pm.running = true

	go pm.run(ctx)

	pm.logger.WithField("interval", pm.cfg.Interval).Info("Polling manager started")
}

// Shutdown cancels the recurring trigger. It does not wait for an in-flight
// cycle: one may still complete after Shutdown returns, but no new tick will
// be scheduled.
func (pm *PollingManager) Shutdown() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if !pm.running {
		return
	}

	pm.cancel()
	pm.running = false
	pm.logger.Info("Polling manager stopped")
}

// IsRunning reports whether the poll loop is active.
func (pm *PollingManager) IsRunning() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.running
}

// Config returns the scheduler's configuration.
func (pm *PollingManager) Config() PollingConfig {
	return pm.cfg
}

func (pm *PollingManager) run(ctx context.Context) {
	tickC, stop := pm.newTicker(pm.cfg.Interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tickC:
			pm.tick(ctx)
		}
	}
}

// tick runs one scheduled cycle, skipping when the market is closed. Ticks
// run serially on the loop goroutine, so a cycle outlasting the interval
// simply delays the next one.
func (pm *PollingManager) tick(ctx context.Context) {
	now := pm.now()
	if !pm.gate.IsOpen(now) {
		pm.logger.WithField("time", now.In(pm.gate.Location())).Debug("Market closed, skipping poll")
		return
	}

	summary, err := pm.runCycle(ctx)
	if err != nil {
		pm.logger.WithError(err).Error("Poll cycle failed")
		return
	}

	pm.logger.WithFields(logrus.Fields{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	}).Info("Poll cycle complete")
}

// RunOnce executes a single poll cycle on demand, ignoring the trading-hours
// gate.
func (pm *PollingManager) RunOnce(ctx context.Context) (*CycleSummary, error) {
	return pm.runCycle(ctx)
}

func (pm *PollingManager) runCycle(ctx context.Context) (*CycleSummary, error) {
	started := pm.now()

	entries, err := pm.store.GetOptionEntries()
	if err != nil {
		// Aborts this cycle only; future ticks still fire.
		return nil, fmt.Errorf("failed to load watchlist: %w", err)
	}

	results := make([]EntryResult, len(entries))
	sem := make(chan struct{}, pm.cfg.MaxConcurrentFetches)
	var wg sync.WaitGroup

	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry interfaces.WatchlistEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = pm.processEntry(ctx, entry, started)
		}(i, entry)
	}
	wg.Wait()

	summary := &CycleSummary{
		StartedAt: started,
		Duration:  pm.now().Sub(started),
		Total:     len(entries),
		Results:   results,
	}

	var notFound *DataNotFoundError
	for i := range results {
		res := &results[i]
		switch {
		case res.Err == nil:
			summary.Succeeded++
		case errors.As(res.Err, &notFound):
			summary.Skipped++
			res.Error = res.Err.Error()
		default:
			summary.Failed++
			res.Error = res.Err.Error()
			pm.logger.WithError(res.Err).WithFields(logrus.Fields{
				"watchlist_id": res.WatchlistID,
				"symbol":       res.Symbol,
			}).Error("Failed to poll watchlist entry")
		}
	}

	return summary, nil
}

// processEntry runs the full fetch-price-record pipeline for one entry. Any
// failure is contained in the returned result and never affects sibling
// entries.
func (pm *PollingManager) processEntry(ctx context.Context, entry interfaces.WatchlistEntry, now time.Time) EntryResult {
	res := EntryResult{
		WatchlistID: entry.ID,
		Symbol:      entry.Symbol,
	}

	fetchCtx, cancel := context.WithTimeout(ctx, pm.cfg.FetchTimeout)
	defer cancel()

	snapshot, err := pm.marketData.GetOptionChain(fetchCtx, entry.Symbol, entry.Expiration)
	if err != nil {
		res.Err = err
		return res
	}

	quote := findQuoteByStrike(snapshot.QuotesForKind(entry.Kind), entry.Strike)
	if quote == nil {
		res.Err = &DataNotFoundError{
			Symbol:     entry.Symbol,
			Expiration: entry.Expiration,
			Strike:     entry.Strike,
		}
		return res
	}

	premium := quotedPremium(quote)
	res.ContractSymbol = quote.ContractSymbol
	res.Premium = premium

	pm.writeMu.Lock()
	err = pm.recorder.RecordPremium(entry, quote.ContractSymbol, premium, now)
	pm.writeMu.Unlock()
	if err != nil {
		res.Err = &PersistenceError{Op: "record premium", Err: err}
		return res
	}

	expDate, err := entry.ExpirationDate()
	if err != nil {
		res.Err = fmt.Errorf("invalid expiration on entry %d: %w", entry.ID, err)
		return res
	}

	T := expDate.Sub(now).Hours() / 24 / 365
	if T <= 0 {
		// Already expired: the premium observation stands, skip EV.
		res.EVSkipped = true
		return res
	}

	pricing, err := CalculateEV(
		snapshot.UnderlyingPrice,
		entry.Strike,
		T,
		pm.cfg.RiskFreeRate,
		quote.ImpliedVolatility,
		entry.Kind,
		premium,
		nil,
	)
	if err != nil {
		res.Err = err
		return res
	}

	pm.writeMu.Lock()
	err = pm.recorder.RecordEV(entry, quote.ContractSymbol, pricing, now)
	pm.writeMu.Unlock()
	if err != nil {
		res.Err = &PersistenceError{Op: "record ev", Err: err}
		return res
	}

	res.Pricing = pricing
	return res
}

// findQuoteByStrike locates the contract matching the entry's strike exactly.
// There is no nearest-strike fallback.
func findQuoteByStrike(quotes []interfaces.ContractQuote, strike float64) *interfaces.ContractQuote {
	for i := range quotes {
		if quotes[i].Strike == strike {
			return &quotes[i]
		}
	}
	return nil
}

// quotedPremium computes the observed premium: the bid/ask midpoint when both
// sides are quoted, otherwise the last trade price.
func quotedPremium(quote *interfaces.ContractQuote) float64 {
	if quote.Bid != nil && quote.Ask != nil {
		return (*quote.Bid + *quote.Ask) / 2
	}
	return quote.LastPrice
}
