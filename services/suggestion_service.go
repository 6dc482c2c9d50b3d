package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"optionscope/interfaces"

	"github.com/sirupsen/logrus"
)

// SuggestionConfig tunes the positive-EV chain scanner.
type SuggestionConfig struct {
	WatchSymbols      []string
	ExpirationsAhead  int // leading expirations scanned per symbol
	StrikeWindow      int // strikes kept either side of the spot price
	MinDiverseSymbols int
	MaxSuggestions    int
	RiskFreeRate      float64
	FetchTimeout      time.Duration
}

// DefaultSuggestionConfig scans a broad set of liquid underlyings.
func DefaultSuggestionConfig() SuggestionConfig {
	return SuggestionConfig{
		WatchSymbols: []string{
			"AAPL", "NVDA", "AMZN", "PLTR", "SPY", "QQQ",
			"GOOG", "TSLA", "MSFT", "AVGO", "HOOD", "BABA",
		},
		ExpirationsAhead:  2,
		StrikeWindow:      2,
		MinDiverseSymbols: 4,
		MaxSuggestions:    6,
		RiskFreeRate:      0.05,
		FetchTimeout:      15 * time.Second,
	}
}

// SuggestionService scans option chains near the money across a fixed symbol
// universe and stores the highest positive-EV contracts it finds.
type SuggestionService struct {
	marketData interfaces.MarketDataService
	store      interfaces.SuggestionStore
	cfg        SuggestionConfig
	logger     *logrus.Logger
}

// NewSuggestionService creates a new suggestion service
func NewSuggestionService(marketData interfaces.MarketDataService, store interfaces.SuggestionStore, cfg SuggestionConfig) *SuggestionService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &SuggestionService{
		marketData: marketData,
		store:      store,
		cfg:        cfg,
		logger:     logger,
	}
}

// Refresh scans every watch symbol and replaces the stored suggestions with
// the best diverse set. Per-symbol failures are logged and skipped.
func (ss *SuggestionService) Refresh(ctx context.Context) ([]interfaces.SmartSuggestion, error) {
	now := time.Now()

	var opportunities []interfaces.SmartSuggestion
	for _, symbol := range ss.cfg.WatchSymbols {
		found, err := ss.scanSymbol(ctx, symbol, now)
		if err != nil {
			ss.logger.WithError(err).WithField("symbol", symbol).Warn("Skipping symbol in suggestion scan")
			continue
		}
		opportunities = append(opportunities, found...)
	}

	selected := ss.selectDiverse(opportunities)

	if err := ss.store.ReplaceSmartSuggestions(selected); err != nil {
		return nil, fmt.Errorf("failed to store suggestions: %w", err)
	}

	ss.logger.WithFields(logrus.Fields{
		"scanned":  len(ss.cfg.WatchSymbols),
		"found":    len(opportunities),
		"selected": len(selected),
	}).Info("Suggestion scan complete")

	return selected, nil
}

func (ss *SuggestionService) scanSymbol(ctx context.Context, symbol string, now time.Time) ([]interfaces.SmartSuggestion, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, ss.cfg.FetchTimeout)
	defer cancel()

	chain, err := ss.marketData.GetOptionChain(fetchCtx, symbol, "")
	if err != nil {
		return nil, err
	}

	expirations := chain.Expirations
	if len(expirations) > ss.cfg.ExpirationsAhead {
		expirations = expirations[:ss.cfg.ExpirationsAhead]
	}

	var found []interfaces.SmartSuggestion
	for _, expiration := range expirations {
		expCtx, cancelExp := context.WithTimeout(ctx, ss.cfg.FetchTimeout)
		snapshot, err := ss.marketData.GetOptionChain(expCtx, symbol, expiration)
		cancelExp()
		if err != nil {
			ss.logger.WithError(err).WithFields(logrus.Fields{
				"symbol":     symbol,
				"expiration": expiration,
			}).Warn("Skipping expiration in suggestion scan")
			continue
		}

		expDate, err := time.Parse("2006-01-02", expiration)
		if err != nil {
			continue
		}
		T := expDate.Sub(now).Hours() / 24 / 365
		if T <= 0 {
			continue
		}

		for _, kind := range []interfaces.OptionKind{interfaces.KindCall, interfaces.KindPut} {
			quotes := snapshot.QuotesForKind(kind)
			for _, quote := range ss.nearTheMoney(quotes, snapshot.UnderlyingPrice) {
				premium := quotedPremium(quote)
				if premium <= 0 || quote.ImpliedVolatility <= 0 {
					continue
				}

				result, err := CalculateEV(snapshot.UnderlyingPrice, quote.Strike, T, ss.cfg.RiskFreeRate, quote.ImpliedVolatility, kind, premium, nil)
				if err != nil {
					continue
				}
				if result.ExpectedValue <= 0 {
					continue
				}

				contractSymbol, err := BuildOptionSymbol(symbol, expDate, kind, quote.Strike)
				if err != nil {
					continue
				}

				found = append(found, interfaces.SmartSuggestion{
					Symbol:         symbol,
					ContractSymbol: contractSymbol,
					Strike:         quote.Strike,
					Expiration:     expiration,
					Kind:           kind,
					StockPrice:     snapshot.UnderlyingPrice,
					EV:             result.ExpectedValue,
					Probability:    result.Probability,
					Delta:          result.Delta,
					MaxGain:        result.MaxGain,
					MaxLoss:        result.MaxLoss,
					Breakeven:      result.Breakeven,
					IV:             quote.ImpliedVolatility * 100,
				})
			}
		}
	}

	return found, nil
}

// nearTheMoney keeps the strikes closest to the spot price, StrikeWindow
// either side. This fuzzy window is a scanner convenience only; the polling
// pipeline always matches exact strikes.
func (ss *SuggestionService) nearTheMoney(quotes []interfaces.ContractQuote, spot float64) []*interfaces.ContractQuote {
	if len(quotes) == 0 {
		return nil
	}

	nearest := 0
	for i := range quotes {
		if math.Abs(quotes[i].Strike-spot) < math.Abs(quotes[nearest].Strike-spot) {
			nearest = i
		}
	}

	lo := nearest - ss.cfg.StrikeWindow
	if lo < 0 {
		lo = 0
	}
	hi := nearest + ss.cfg.StrikeWindow + 1
	if hi > len(quotes) {
		hi = len(quotes)
	}

	window := make([]*interfaces.ContractQuote, 0, hi-lo)
	for i := lo; i < hi; i++ {
		window = append(window, &quotes[i])
	}
	return window
}

// selectDiverse picks suggestions by EV, guaranteeing at least
// MinDiverseSymbols distinct underlyings before filling remaining slots with
// the highest EV overall.
func (ss *SuggestionService) selectDiverse(opportunities []interfaces.SmartSuggestion) []interfaces.SmartSuggestion {
	sorted := make([]interfaces.SmartSuggestion, len(opportunities))
	copy(sorted, opportunities)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EV > sorted[j].EV
	})

	selected := make([]interfaces.SmartSuggestion, 0, ss.cfg.MaxSuggestions)
	taken := make(map[int]bool)
	seenSymbols := make(map[string]bool)

	for i, opp := range sorted {
		if len(seenSymbols) >= ss.cfg.MinDiverseSymbols {
			break
		}
		if !seenSymbols[opp.Symbol] {
			selected = append(selected, opp)
			seenSymbols[opp.Symbol] = true
			taken[i] = true
		}
	}

	for i, opp := range sorted {
		if len(selected) >= ss.cfg.MaxSuggestions {
			break
		}
		if !taken[i] {
			selected = append(selected, opp)
			taken[i] = true
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].EV > selected[j].EV
	})
	return selected
}
