package models

import (
	"time"

	"gorm.io/gorm"
)

// DBUser represents a registered user in the database
type DBUser struct {
	gorm.Model
	UserUID       string `gorm:"uniqueIndex"`
	Email         string `gorm:"index"`
	Name          string
	RegisteredAt  time.Time
	LastLogin     time.Time
	PreferredView string // "table" or "chart"
	AccountType   string // "free" or "premium"
}

// DBWatchlistEntry represents a tracked position. Option entries carry all of
// option_type, strike and expiration; stock entries carry none of them.
type DBWatchlistEntry struct {
	gorm.Model
	UserUID    string `gorm:"index"`
	Symbol     string `gorm:"index"`
	OptionType string
	Strike     float64
	Expiration string // YYYY-MM-DD, empty for stock entries
	AddedAt    time.Time
}

// DBPremiumHistory is one append-only premium observation for a watchlist
// entry. Rows are never updated in place.
type DBPremiumHistory struct {
	gorm.Model
	WatchlistID    uint   `gorm:"index:idx_premium_watchlist_recorded"`
	UserUID        string `gorm:"index"`
	ContractSymbol string
	Symbol         string
	Strike         float64
	Expiration     string
	OptionType     string
	Premium        float64
	RecordedAt     time.Time `gorm:"index:idx_premium_watchlist_recorded"`
}

// DBEVHistory is one append-only expected-value snapshot for a watchlist
// entry.
type DBEVHistory struct {
	gorm.Model
	WatchlistID    uint   `gorm:"index:idx_ev_watchlist_recorded"`
	UserUID        string `gorm:"index"`
	ContractSymbol string
	ExpectedValue  float64
	Probability    float64
	Delta          float64
	MaxGain        float64
	MaxLoss        float64
	Breakeven      float64
	RecordedAt     time.Time `gorm:"index:idx_ev_watchlist_recorded"`
}

// DBSmartSuggestion is a scanner-generated positive-EV trade idea. The table
// is replaced wholesale on each analysis run.
type DBSmartSuggestion struct {
	gorm.Model
	Symbol         string `gorm:"index"`
	ContractSymbol string
	Strike         float64
	Expiration     string
	OptionType     string
	StockPrice     float64
	EV             float64
	Probability    float64
	Delta          float64
	MaxGain        float64
	MaxLoss        float64
	Breakeven      float64
	IV             float64 // percent
}

// TableName overrides for cleaner table names
func (DBUser) TableName() string {
	return "users"
}

func (DBWatchlistEntry) TableName() string {
	return "watchlist"
}

func (DBPremiumHistory) TableName() string {
	return "option_premium_history"
}

func (DBEVHistory) TableName() string {
	return "option_ev_history"
}

func (DBSmartSuggestion) TableName() string {
	return "smart_suggestions"
}
