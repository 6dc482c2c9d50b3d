package interfaces

import (
	"time"
)

// WatchlistEntry is an immutable snapshot of one tracked position. Option
// entries carry all of kind, strike and expiration; stock entries carry none
// of them. Expiration is a calendar date in YYYY-MM-DD form.
type WatchlistEntry struct {
	ID         uint
	OwnerUID   string
	Symbol     string
	Kind       OptionKind
	Strike     float64
	Expiration string
	AddedAt    time.Time
}

// IsOption reports whether the entry tracks an option contract rather than
// plain stock.
func (e *WatchlistEntry) IsOption() bool {
	return e.Kind != KindNone
}

// ExpirationDate parses the entry's expiration date.
func (e *WatchlistEntry) ExpirationDate() (time.Time, error) {
	return time.Parse("2006-01-02", e.Expiration)
}

// PricingResult holds the derived metrics for one option contract. Values are
// rounded to 4 decimal places; the struct is never mutated after creation.
type PricingResult struct {
	ExpectedValue float64 `json:"ev"`
	Probability   float64 `json:"probability"`
	Delta         float64 `json:"delta"`
	MaxGain       float64 `json:"max_gain"`
	MaxLoss       float64 `json:"max_loss"`
	Breakeven     float64 `json:"breakeven"`
}

// PremiumObservation is one append-only premium history row.
type PremiumObservation struct {
	ID             uint       `json:"id"`
	WatchlistID    uint       `json:"watchlist_id"`
	ContractSymbol string     `json:"contract_symbol"`
	Symbol         string     `json:"symbol"`
	Strike         float64    `json:"strike"`
	Expiration     string     `json:"expiration"`
	Kind           OptionKind `json:"option_type"`
	Premium        float64    `json:"premium"`
	RecordedAt     time.Time  `json:"recorded_at"`
}

// EVObservation is one append-only expected-value history row.
type EVObservation struct {
	ID             uint      `json:"id"`
	WatchlistID    uint      `json:"watchlist_id"`
	ContractSymbol string    `json:"contract_symbol"`
	Result         PricingResult
	RecordedAt     time.Time `json:"recorded_at"`
}

// SmartSuggestion is a positive-EV opportunity surfaced by the chain scanner.
type SmartSuggestion struct {
	Symbol         string     `json:"symbol"`
	ContractSymbol string     `json:"contract_symbol"`
	Strike         float64    `json:"strike"`
	Expiration     string     `json:"expiration"`
	Kind           OptionKind `json:"option_type"`
	StockPrice     float64    `json:"stock_price"`
	EV             float64    `json:"ev"`
	Probability    float64    `json:"probability"`
	Delta          float64    `json:"delta"`
	MaxGain        float64    `json:"max_gain"`
	MaxLoss        float64    `json:"max_loss"`
	Breakeven      float64    `json:"breakeven"`
	IV             float64    `json:"iv"`
}

// UserProfile is the user-visible slice of a registered account.
type UserProfile struct {
	UserUID       string    `json:"user_uid"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PreferredView string    `json:"preferred_view"`
	AccountType   string    `json:"account_type"`
	LastLogin     time.Time `json:"last_login"`
}

// WatchlistStore supplies the set of tracked positions. The polling core
// re-reads the watchlist every cycle and never holds row handles across
// cycles.
type WatchlistStore interface {
	GetOptionEntries() ([]WatchlistEntry, error)
}

// SuggestionStore persists scanner output. Each run replaces the previous
// one; suggestions are a rolling snapshot, not a history.
type SuggestionStore interface {
	ReplaceSmartSuggestions(suggestions []SmartSuggestion) error
	GetSmartSuggestions() ([]SmartSuggestion, error)
}

// HistoryRecorder appends premium and EV observations. Both calls are
// best-effort per entry: a failed write is reported to the caller and must
// not prevent recording for other entries.
type HistoryRecorder interface {
	RecordPremium(entry WatchlistEntry, contractSymbol string, premium float64, at time.Time) error
	RecordEV(entry WatchlistEntry, contractSymbol string, result *PricingResult, at time.Time) error
}
