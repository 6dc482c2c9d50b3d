package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"optionscope/interfaces"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sirupsen/logrus"
)

// AlpacaMarketDataService fetches underlying prices and option-chain
// snapshots from Alpaca's data API.
type AlpacaMarketDataService struct {
	apiKey    string
	secretKey string
	baseURL   string
	logger    *logrus.Logger
	client    *http.Client
	stocks    *marketdata.Client
}

// NewAlpacaMarketDataService creates a new Alpaca market data service
func NewAlpacaMarketDataService(apiKey, secretKey string) *AlpacaMarketDataService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// One timeout-bearing client for both the raw chain endpoint and the
	// SDK, so no gateway call can outlive it.
	client := &http.Client{Timeout: 30 * time.Second}

	return &AlpacaMarketDataService{
		apiKey:    apiKey,
		secretKey: secretKey,
		baseURL:   "https://data.alpaca.markets",
		logger:    logger,
		client:    client,
		stocks: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:     apiKey,
			APISecret:  secretKey,
			HTTPClient: client,
		}),
	}
}

// callBounded runs an SDK call that takes no context and honors the caller's
// deadline. An abandoned call keeps running until the shared client timeout
// fires.
func callBounded[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		value, err := call()
		done <- outcome{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case out := <-done:
		return out.value, out.err
	}
}

// GetUnderlyingPrice returns the latest trade price for a stock symbol.
func (s *AlpacaMarketDataService) GetUnderlyingPrice(ctx context.Context, symbol string) (float64, error) {
	trade, err := callBounded(ctx, func() (*marketdata.Trade, error) {
		return s.stocks.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	})
	if err != nil {
		return 0, &GatewayError{Symbol: symbol, Err: err}
	}
	if trade == nil || trade.Price <= 0 {
		return 0, &DataNotFoundError{Symbol: symbol}
	}
	return trade.Price, nil
}

// GetStockQuote returns the latest quote view for the stock lookup endpoint.
func (s *AlpacaMarketDataService) GetStockQuote(ctx context.Context, symbol string) (*interfaces.StockQuote, error) {
	snapshot, err := callBounded(ctx, func() (*marketdata.Snapshot, error) {
		return s.stocks.GetSnapshot(symbol, marketdata.GetSnapshotRequest{})
	})
	if err != nil {
		return nil, &GatewayError{Symbol: symbol, Err: err}
	}
	if snapshot == nil || snapshot.LatestTrade == nil {
		return nil, &DataNotFoundError{Symbol: symbol}
	}

	current := snapshot.LatestTrade.Price

	var prevClose float64
	if snapshot.PrevDailyBar != nil {
		prevClose = snapshot.PrevDailyBar.Close
	}

	var volume int64
	if snapshot.DailyBar != nil {
		volume = int64(snapshot.DailyBar.Volume)
	}

	quote := &interfaces.StockQuote{
		Symbol:        symbol,
		CurrentPrice:  current,
		PreviousClose: prevClose,
		Volume:        volume,
	}
	if prevClose > 0 {
		quote.PriceChange = round4(current - prevClose)
		quote.PercentChange = round4((current - prevClose) / prevClose * 100)
	}

	return quote, nil
}

// alpacaOptionSnapshots is Alpaca's option snapshot response, keyed by OCC
// contract symbol.
type alpacaOptionSnapshots struct {
	Snapshots     map[string]alpacaOptionSnapshot `json:"snapshots"`
	NextPageToken *string                         `json:"next_page_token"`
}

type alpacaOptionSnapshot struct {
	LatestQuote       *alpacaOptionQuote `json:"latestQuote"`
	LatestTrade       *alpacaOptionTrade `json:"latestTrade"`
	ImpliedVolatility float64            `json:"impliedVolatility"`
}

type alpacaOptionQuote struct {
	Timestamp time.Time `json:"t"`
	BidPrice  float64   `json:"bp"`
	AskPrice  float64   `json:"ap"`
	BidSize   int       `json:"bs"`
	AskSize   int       `json:"as"`
}

type alpacaOptionTrade struct {
	Timestamp time.Time `json:"t"`
	Price     float64   `json:"p"`
	Size      int       `json:"s"`
}

// fetchChainSnapshots pages through the options snapshot endpoint until the
// feed stops handing back a page token, merging every page into one map.
// Wide chains span several pages at the 1000-contract page size.
func (s *AlpacaMarketDataService) fetchChainSnapshots(ctx context.Context, symbol, expiration string) (map[string]alpacaOptionSnapshot, error) {
	merged := make(map[string]alpacaOptionSnapshot)
	pageToken := ""

	for {
		endpoint := fmt.Sprintf("%s/v1beta1/options/snapshots/%s?feed=indicative&limit=1000", s.baseURL, symbol)
		if expiration != "" {
			endpoint += "&expiration_date=" + expiration
		}
		if pageToken != "" {
			endpoint += "&page_token=" + url.QueryEscape(pageToken)
		}

		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return nil, &GatewayError{Symbol: symbol, Expiration: expiration, Err: err}
		}

		req.Header.Set("APCA-API-KEY-ID", s.apiKey)
		req.Header.Set("APCA-API-SECRET-KEY", s.secretKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, &GatewayError{Symbol: symbol, Expiration: expiration, Err: err}
		}

		page, err := decodeChainPage(resp, symbol, expiration)
		if err != nil {
			return nil, err
		}

		for contractSymbol, contract := range page.Snapshots {
			merged[contractSymbol] = contract
		}

		if page.NextPageToken == nil || *page.NextPageToken == "" {
			return merged, nil
		}
		pageToken = *page.NextPageToken
	}
}

func decodeChainPage(resp *http.Response, symbol, expiration string) (*alpacaOptionSnapshots, error) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &DataNotFoundError{Symbol: symbol, Expiration: expiration}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &GatewayError{
			Symbol:     symbol,
			Expiration: expiration,
			Err:        fmt.Errorf("API error %d: %s", resp.StatusCode, string(body)),
		}
	}

	var page alpacaOptionSnapshots
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &GatewayError{Symbol: symbol, Expiration: expiration, Err: fmt.Errorf("failed to decode chain: %w", err)}
	}
	return &page, nil
}

// GetOptionChain fetches the option-chain snapshot for one underlying and
// expiration date. A fresh snapshot is produced on every call.
func (s *AlpacaMarketDataService) GetOptionChain(ctx context.Context, symbol string, expiration string) (*interfaces.MarketSnapshot, error) {
	underlyingPrice, err := s.GetUnderlyingPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"underlying": symbol,
		"expiration": expiration,
	}).Debug("Fetching option chain")

	contracts, err := s.fetchChainSnapshots(ctx, symbol, expiration)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, &DataNotFoundError{Symbol: symbol, Expiration: expiration}
	}

	snapshot := &interfaces.MarketSnapshot{
		Symbol:          symbol,
		UnderlyingPrice: underlyingPrice,
		Expiration:      expiration,
	}

	expirationSet := make(map[string]bool)
	for contractSymbol, contract := range contracts {
		components, err := ParseOptionSymbol(contractSymbol)
		if err != nil {
			s.logger.WithError(err).WithField("contract", contractSymbol).Warn("Skipping unparseable contract symbol")
			continue
		}

		expirationSet[components.Expiration.Format("2006-01-02")] = true

		quote := interfaces.ContractQuote{
			ContractSymbol:    contractSymbol,
			Strike:            components.Strike,
			ImpliedVolatility: contract.ImpliedVolatility,
		}
		if contract.LatestTrade != nil {
			quote.LastPrice = contract.LatestTrade.Price
		}
		if contract.LatestQuote != nil {
			// The feed reports 0 for a missing side; keep those null.
			if bid := contract.LatestQuote.BidPrice; bid > 0 {
				quote.Bid = &bid
			}
			if ask := contract.LatestQuote.AskPrice; ask > 0 {
				quote.Ask = &ask
			}
		}

		switch components.Kind {
		case interfaces.KindCall:
			quote.InTheMoney = underlyingPrice > components.Strike
			snapshot.Calls = append(snapshot.Calls, quote)
		case interfaces.KindPut:
			quote.InTheMoney = underlyingPrice < components.Strike
			snapshot.Puts = append(snapshot.Puts, quote)
		}
	}

	sort.Slice(snapshot.Calls, func(i, j int) bool {
		return snapshot.Calls[i].Strike < snapshot.Calls[j].Strike
	})
	sort.Slice(snapshot.Puts, func(i, j int) bool {
		return snapshot.Puts[i].Strike < snapshot.Puts[j].Strike
	})

	for exp := range expirationSet {
		snapshot.Expirations = append(snapshot.Expirations, exp)
	}
	sort.Strings(snapshot.Expirations)

	s.logger.WithFields(logrus.Fields{
		"underlying": symbol,
		"calls":      len(snapshot.Calls),
		"puts":       len(snapshot.Puts),
	}).Debug("Fetched option chain")

	return snapshot, nil
}
