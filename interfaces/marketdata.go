package interfaces

import (
	"context"
	"fmt"
)

// OptionKind identifies the side of an option contract. A watchlist entry
// tracking plain stock carries KindNone.
type OptionKind string

const (
	KindCall OptionKind = "call"
	KindPut  OptionKind = "put"
	KindNone OptionKind = ""
)

func (k OptionKind) Validate() error {
	if k != KindCall && k != KindPut {
		return fmt.Errorf("invalid option kind: %q", string(k))
	}
	return nil
}

// ContractQuote is a single contract row from an option-chain snapshot.
// Bid/Ask and the volume fields are nullable at the provider boundary.
type ContractQuote struct {
	ContractSymbol    string   `json:"contractSymbol"`
	Strike            float64  `json:"strike"`
	LastPrice         float64  `json:"lastPrice"`
	Bid               *float64 `json:"bid"`
	Ask               *float64 `json:"ask"`
	Volume            *int64   `json:"volume"`
	OpenInterest      *int64   `json:"openInterest"`
	ImpliedVolatility float64  `json:"impliedVolatility"`
	InTheMoney        bool     `json:"inTheMoney"`
}

// MarketSnapshot is a point-in-time view of one expiration's chain plus the
// underlying price. It is produced fresh on every gateway call and never
// cached or persisted.
type MarketSnapshot struct {
	Symbol          string          `json:"symbol"`
	UnderlyingPrice float64         `json:"underlyingPrice"`
	Expiration      string          `json:"expiration"`
	Expirations     []string        `json:"expirations"`
	Calls           []ContractQuote `json:"calls"`
	Puts            []ContractQuote `json:"puts"`
}

// QuotesForKind returns the call or put side of the chain.
func (s *MarketSnapshot) QuotesForKind(kind OptionKind) []ContractQuote {
	if kind == KindPut {
		return s.Puts
	}
	return s.Calls
}

// StockQuote is a simple underlying quote for the lookup endpoint.
type StockQuote struct {
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousClose float64 `json:"previous_close"`
	PriceChange   float64 `json:"price_change"`
	PercentChange float64 `json:"percent_change"`
	Volume        int64   `json:"volume"`
}

// MarketDataService defines the market-data provider boundary. Both chain and
// price lookups are network calls: callers bound them with a context deadline
// and must treat any error as affecting only the symbol being fetched.
type MarketDataService interface {
	GetUnderlyingPrice(ctx context.Context, symbol string) (float64, error)
	GetOptionChain(ctx context.Context, symbol string, expiration string) (*MarketSnapshot, error)
	GetStockQuote(ctx context.Context, symbol string) (*StockQuote, error)
}
