package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"optionscope/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSuggestionStore struct {
	mu    sync.Mutex
	saved []interfaces.SmartSuggestion
	err   error
}

func (f *fakeSuggestionStore) ReplaceSmartSuggestions(suggestions []interfaces.SmartSuggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append([]interfaces.SmartSuggestion(nil), suggestions...)
	return nil
}

func (f *fakeSuggestionStore) GetSmartSuggestions() ([]interfaces.SmartSuggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved, nil
}

// scanSnapshot builds a one-expiration chain far enough in the future that
// time to expiry stays positive for the life of the test suite.
func scanSnapshot(symbol string, underlying float64, calls ...interfaces.ContractQuote) *interfaces.MarketSnapshot {
	return &interfaces.MarketSnapshot{
		Symbol:          symbol,
		UnderlyingPrice: underlying,
		Expiration:      "2027-01-15",
		Expirations:     []string{"2027-01-15"},
		Calls:           calls,
	}
}

func scanQuote(strike, lastPrice, iv float64) interfaces.ContractQuote {
	return interfaces.ContractQuote{
		ContractSymbol:    "TEST",
		Strike:            strike,
		LastPrice:         lastPrice,
		ImpliedVolatility: iv,
	}
}

func newScanService(market interfaces.MarketDataService, store interfaces.SuggestionStore, mutate func(*SuggestionConfig)) *SuggestionService {
	cfg := DefaultSuggestionConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewSuggestionService(market, store, cfg)
}

func TestRefreshKeepsOnlyPositiveEV(t *testing.T) {
	// Cheap at-the-money call is positive EV; the overpriced one cannot be,
	// its premium exceeds the expected-move gain so max gain floors at zero.
	market := &fakeMarketData{snapshots: map[string]*interfaces.MarketSnapshot{
		"AAPL": scanSnapshot("AAPL", 150,
			scanQuote(145, 80.0, 0.40),
			scanQuote(150, 1.00, 0.40),
		),
	}}
	store := &fakeSuggestionStore{}
	service := newScanService(market, store, func(cfg *SuggestionConfig) {
		cfg.WatchSymbols = []string{"AAPL"}
	})

	selected, err := service.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, selected, 1)

	assert.Equal(t, "AAPL", selected[0].Symbol)
	assert.Equal(t, "AAPL270115C00150000", selected[0].ContractSymbol)
	assert.Equal(t, 150.0, selected[0].Strike)
	assert.Equal(t, interfaces.KindCall, selected[0].Kind)
	assert.Greater(t, selected[0].EV, 0.0)
	assert.Equal(t, 40.0, selected[0].IV)

	saved, err := store.GetSmartSuggestions()
	require.NoError(t, err)
	assert.Equal(t, selected, saved)
}

func TestRefreshSkipsFailingSymbols(t *testing.T) {
	market := &fakeMarketData{
		snapshots: map[string]*interfaces.MarketSnapshot{
			"AAPL": scanSnapshot("AAPL", 150, scanQuote(150, 1.00, 0.40)),
		},
		errs: map[string]error{
			"NVDA": errors.New("upstream timeout"),
		},
	}
	store := &fakeSuggestionStore{}
	service := newScanService(market, store, func(cfg *SuggestionConfig) {
		cfg.WatchSymbols = []string{"NVDA", "AAPL"}
	})

	selected, err := service.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "AAPL", selected[0].Symbol)
}

func TestRefreshIgnoresUnusableQuotes(t *testing.T) {
	market := &fakeMarketData{snapshots: map[string]*interfaces.MarketSnapshot{
		"AAPL": scanSnapshot("AAPL", 150,
			scanQuote(145, 0, 0.40), // no premium quoted
			scanQuote(150, 1.00, 0), // no implied volatility
		),
	}}
	store := &fakeSuggestionStore{}
	service := newScanService(market, store, func(cfg *SuggestionConfig) {
		cfg.WatchSymbols = []string{"AAPL"}
	})

	selected, err := service.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestRefreshOrdersByEVDescending(t *testing.T) {
	market := &fakeMarketData{snapshots: map[string]*interfaces.MarketSnapshot{
		"SPY": scanSnapshot("SPY", 560,
			scanQuote(555, 3.00, 0.25),
			scanQuote(560, 2.00, 0.25),
			scanQuote(565, 1.00, 0.25),
		),
	}}
	store := &fakeSuggestionStore{}
	service := newScanService(market, store, func(cfg *SuggestionConfig) {
		cfg.WatchSymbols = []string{"SPY"}
	})

	selected, err := service.Refresh(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, selected)
	for i := 1; i < len(selected); i++ {
		assert.GreaterOrEqual(t, selected[i-1].EV, selected[i].EV)
	}
}

func TestRefreshReportsStoreFailure(t *testing.T) {
	market := &fakeMarketData{snapshots: map[string]*interfaces.MarketSnapshot{
		"AAPL": scanSnapshot("AAPL", 150, scanQuote(150, 1.00, 0.40)),
	}}
	store := &fakeSuggestionStore{err: errors.New("disk full")}
	service := newScanService(market, store, func(cfg *SuggestionConfig) {
		cfg.WatchSymbols = []string{"AAPL"}
	})

	_, err := service.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store suggestions")
}

func TestSelectDiversePrefersDistinctSymbols(t *testing.T) {
	service := newScanService(nil, nil, func(cfg *SuggestionConfig) {
		cfg.MinDiverseSymbols = 3
		cfg.MaxSuggestions = 4
	})

	// AAPL dominates by EV; diversity still has to pull in NVDA and SPY
	// before the remaining slot goes back to AAPL's second-best.
	opportunities := []interfaces.SmartSuggestion{
		{Symbol: "AAPL", Strike: 150, EV: 50},
		{Symbol: "AAPL", Strike: 155, EV: 45},
		{Symbol: "AAPL", Strike: 160, EV: 40},
		{Symbol: "NVDA", Strike: 900, EV: 10},
		{Symbol: "SPY", Strike: 560, EV: 5},
	}

	selected := service.selectDiverse(opportunities)
	require.Len(t, selected, 4)

	symbols := make(map[string]int)
	for _, s := range selected {
		symbols[s.Symbol]++
	}
	assert.Len(t, symbols, 3)
	assert.Equal(t, 2, symbols["AAPL"])
	assert.Equal(t, 1, symbols["NVDA"])
	assert.Equal(t, 1, symbols["SPY"])

	for i := 1; i < len(selected); i++ {
		assert.GreaterOrEqual(t, selected[i-1].EV, selected[i].EV)
	}
	assert.Equal(t, 50.0, selected[0].EV)
}

func TestNearTheMoneyWindow(t *testing.T) {
	service := newScanService(nil, nil, func(cfg *SuggestionConfig) {
		cfg.StrikeWindow = 2
	})

	var quotes []interfaces.ContractQuote
	for strike := 100.0; strike <= 200.0; strike += 10 {
		quotes = append(quotes, interfaces.ContractQuote{Strike: strike})
	}

	window := service.nearTheMoney(quotes, 148)
	require.Len(t, window, 5)
	assert.Equal(t, 130.0, window[0].Strike)
	assert.Equal(t, 170.0, window[4].Strike)

	// Window clamps at the edge of the chain instead of wrapping.
	edge := service.nearTheMoney(quotes, 95)
	require.Len(t, edge, 3)
	assert.Equal(t, 100.0, edge[0].Strike)
	assert.Equal(t, 120.0, edge[2].Strike)

	assert.Nil(t, service.nearTheMoney(nil, 100))
}
