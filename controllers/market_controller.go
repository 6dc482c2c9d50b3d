package controllers

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"optionscope/interfaces"
	"optionscope/services"

	"github.com/gin-gonic/gin"
)

// MarketDataController handles stock quote and option chain lookups
type MarketDataController struct {
	marketData interfaces.MarketDataService
}

// NewMarketDataController creates a new market data controller
func NewMarketDataController(marketData interfaces.MarketDataService) *MarketDataController {
	return &MarketDataController{
		marketData: marketData,
	}
}

// HandleGetStockQuote looks up a stock quote
// GET /stocks/:symbol
func (mc *MarketDataController) HandleGetStockQuote(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	quote, err := mc.marketData.GetStockQuote(c.Request.Context(), symbol)
	if err != nil {
		var notFound *services.DataNotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Symbol not found",
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to fetch quote",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, quote)
}

// HandleGetOptionChain looks up the option chain for one expiration
// GET /options/:symbol?expiration=YYYY-MM-DD
func (mc *MarketDataController) HandleGetOptionChain(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	expiration := c.Query("expiration")

	snapshot, err := mc.marketData.GetOptionChain(c.Request.Context(), symbol, expiration)
	if err != nil {
		var notFound *services.DataNotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No option chain for symbol",
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to fetch option chain",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, chainToResponse(snapshot))
}

// chainResponse is the wire shape of an option chain. Every numeric field
// that could carry a non-finite value is nullable so NaN/Infinity serialize
// as null.
type chainResponse struct {
	Symbol          string          `json:"symbol"`
	UnderlyingPrice *float64        `json:"underlyingPrice"`
	Expiration      string          `json:"expiration"`
	Expirations     []string        `json:"expirations"`
	Calls           []contractQuote `json:"calls"`
	Puts            []contractQuote `json:"puts"`
}

type contractQuote struct {
	ContractSymbol    string   `json:"contractSymbol"`
	Strike            *float64 `json:"strike"`
	LastPrice         *float64 `json:"lastPrice"`
	Bid               *float64 `json:"bid"`
	Ask               *float64 `json:"ask"`
	Volume            *int64   `json:"volume"`
	OpenInterest      *int64   `json:"openInterest"`
	ImpliedVolatility *float64 `json:"impliedVolatility"`
	InTheMoney        bool     `json:"inTheMoney"`
}

func chainToResponse(snapshot *interfaces.MarketSnapshot) chainResponse {
	resp := chainResponse{
		Symbol:          snapshot.Symbol,
		UnderlyingPrice: finiteOrNull(snapshot.UnderlyingPrice),
		Expiration:      snapshot.Expiration,
		Expirations:     snapshot.Expirations,
		Calls:           make([]contractQuote, len(snapshot.Calls)),
		Puts:            make([]contractQuote, len(snapshot.Puts)),
	}
	for i := range snapshot.Calls {
		resp.Calls[i] = quoteToResponse(&snapshot.Calls[i])
	}
	for i := range snapshot.Puts {
		resp.Puts[i] = quoteToResponse(&snapshot.Puts[i])
	}
	return resp
}

func quoteToResponse(q *interfaces.ContractQuote) contractQuote {
	out := contractQuote{
		ContractSymbol:    q.ContractSymbol,
		Strike:            finiteOrNull(q.Strike),
		LastPrice:         finiteOrNull(q.LastPrice),
		Volume:            q.Volume,
		OpenInterest:      q.OpenInterest,
		ImpliedVolatility: finiteOrNull(q.ImpliedVolatility),
		InTheMoney:        q.InTheMoney,
	}
	if q.Bid != nil {
		out.Bid = finiteOrNull(*q.Bid)
	}
	if q.Ask != nil {
		out.Ask = finiteOrNull(*q.Ask)
	}
	return out
}

func finiteOrNull(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
