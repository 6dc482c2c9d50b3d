package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"optionscope/interfaces"
	"optionscope/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrEntryNotFound indicates the watchlist entry does not exist.
	ErrEntryNotFound = errors.New("watchlist entry not found")
	// ErrNoHistory indicates the entry exists but has no recorded rows yet.
	ErrNoHistory = errors.New("no history recorded for entry")
	// ErrUserNotFound indicates no registered user with the given uid.
	ErrUserNotFound = errors.New("user not found")
)

// LocalStorage implements the watchlist store and history recorder using SQLite
type LocalStorage struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewLocalStorage creates a new local storage service
func NewLocalStorage(dbPath string) (*LocalStorage, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open SQLite database
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Auto-migrate schemas
	if err := db.AutoMigrate(
		&models.DBUser{},
		&models.DBWatchlistEntry{},
		&models.DBPremiumHistory{},
		&models.DBEVHistory{},
		&models.DBSmartSuggestion{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &LocalStorage{
		db:     db,
		logger: logger,
	}, nil
}

// RegisterUser creates a user if the uid is new and returns the user id.
func (s *LocalStorage) RegisterUser(uid, email, name string) (uint, error) {
	var existing models.DBUser
	err := s.db.Where("user_uid = ?", uid).First(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to look up user: %w", err)
	}

	now := time.Now().UTC()
	user := models.DBUser{
		UserUID:       uid,
		Email:         email,
		Name:          name,
		RegisteredAt:  now,
		LastLogin:     now,
		PreferredView: "table",
		AccountType:   "free",
	}

	if err := s.db.Create(&user).Error; err != nil {
		return 0, fmt.Errorf("failed to register user: %w", err)
	}

	s.logger.WithField("uid", uid).Info("Registered new user")
	return user.ID, nil
}

// UpdateUser applies the non-nil settings to an existing user.
func (s *LocalStorage) UpdateUser(uid string, preferredView, accountType *string) (*interfaces.UserProfile, error) {
	var user models.DBUser
	if err := s.db.Where("user_uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if preferredView != nil {
		user.PreferredView = *preferredView
	}
	if accountType != nil {
		user.AccountType = *accountType
	}

	if err := s.db.Save(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return userToProfile(&user), nil
}

// GetUserProfile retrieves a user profile by uid.
func (s *LocalStorage) GetUserProfile(uid string) (*interfaces.UserProfile, error) {
	var user models.DBUser
	if err := s.db.Where("user_uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return userToProfile(&user), nil
}

// TouchLastLogin stamps the user's last login time.
func (s *LocalStorage) TouchLastLogin(uid string) error {
	result := s.db.Model(&models.DBUser{}).
		Where("user_uid = ?", uid).
		Update("last_login", time.Now().UTC())
	if result.Error != nil {
		return fmt.Errorf("failed to update last login: %w", result.Error)
	}
	return nil
}

// AddWatchlistEntry validates and stores a new tracked position.
func (s *LocalStorage) AddWatchlistEntry(entry interfaces.WatchlistEntry) (*interfaces.WatchlistEntry, error) {
	if err := validateEntry(&entry); err != nil {
		return nil, err
	}

	dbEntry := models.DBWatchlistEntry{
		UserUID:    entry.OwnerUID,
		Symbol:     entry.Symbol,
		OptionType: string(entry.Kind),
		Strike:     entry.Strike,
		Expiration: entry.Expiration,
		AddedAt:    time.Now().UTC(),
	}

	if err := s.db.Create(&dbEntry).Error; err != nil {
		return nil, fmt.Errorf("failed to add watchlist entry: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"uid":    entry.OwnerUID,
		"symbol": entry.Symbol,
		"kind":   string(entry.Kind),
	}).Info("Added watchlist entry")

	return entryToValue(&dbEntry), nil
}

// RemoveWatchlistEntry deletes an entry and cascades to its history rows.
func (s *LocalStorage) RemoveWatchlistEntry(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var entry models.DBWatchlistEntry
		if err := tx.First(&entry, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return fmt.Errorf("failed to get watchlist entry: %w", err)
		}

		if err := tx.Where("watchlist_id = ?", id).Delete(&models.DBPremiumHistory{}).Error; err != nil {
			return fmt.Errorf("failed to delete premium history: %w", err)
		}
		if err := tx.Where("watchlist_id = ?", id).Delete(&models.DBEVHistory{}).Error; err != nil {
			return fmt.Errorf("failed to delete ev history: %w", err)
		}
		if err := tx.Delete(&entry).Error; err != nil {
			return fmt.Errorf("failed to delete watchlist entry: %w", err)
		}

		return nil
	})
}

// GetWatchlist retrieves a user's entries, optionally filtered to "stocks" or
// "options".
func (s *LocalStorage) GetWatchlist(uid, view string) ([]interfaces.WatchlistEntry, error) {
	query := s.db.Where("user_uid = ?", uid)
	switch view {
	case "options":
		query = query.Where("option_type <> '' AND expiration <> ''")
	case "stocks":
		query = query.Where("option_type = ''")
	}

	var dbEntries []*models.DBWatchlistEntry
	if err := query.Order("added_at ASC").Find(&dbEntries).Error; err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}

	entries := make([]interfaces.WatchlistEntry, len(dbEntries))
	for i, dbEntry := range dbEntries {
		entries[i] = *entryToValue(dbEntry)
	}
	return entries, nil
}

// GetWatchlistEntry retrieves a single entry by id.
func (s *LocalStorage) GetWatchlistEntry(id uint) (*interfaces.WatchlistEntry, error) {
	var dbEntry models.DBWatchlistEntry
	if err := s.db.First(&dbEntry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get watchlist entry: %w", err)
	}
	return entryToValue(&dbEntry), nil
}

// GetOptionEntries returns every entry eligible for polling: option kind,
// strike and expiration all present. Plain stock entries are excluded.
func (s *LocalStorage) GetOptionEntries() ([]interfaces.WatchlistEntry, error) {
	var dbEntries []*models.DBWatchlistEntry
	err := s.db.
		Where("option_type <> '' AND strike > 0 AND expiration <> ''").
		Find(&dbEntries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load option entries: %w", err)
	}

	entries := make([]interfaces.WatchlistEntry, len(dbEntries))
	for i, dbEntry := range dbEntries {
		entries[i] = *entryToValue(dbEntry)
	}
	return entries, nil
}

// RecordPremium appends a premium observation. Rows are never updated.
func (s *LocalStorage) RecordPremium(entry interfaces.WatchlistEntry, contractSymbol string, premium float64, at time.Time) error {
	row := models.DBPremiumHistory{
		WatchlistID:    entry.ID,
		UserUID:        entry.OwnerUID,
		ContractSymbol: contractSymbol,
		Symbol:         entry.Symbol,
		Strike:         entry.Strike,
		Expiration:     entry.Expiration,
		OptionType:     string(entry.Kind),
		Premium:        premium,
		RecordedAt:     at,
	}

	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record premium: %w", err)
	}
	return nil
}

// RecordEV appends an expected-value snapshot. Rows are never updated.
func (s *LocalStorage) RecordEV(entry interfaces.WatchlistEntry, contractSymbol string, result *interfaces.PricingResult, at time.Time) error {
	row := models.DBEVHistory{
		WatchlistID:    entry.ID,
		UserUID:        entry.OwnerUID,
		ContractSymbol: contractSymbol,
		ExpectedValue:  result.ExpectedValue,
		Probability:    result.Probability,
		Delta:          result.Delta,
		MaxGain:        result.MaxGain,
		MaxLoss:        result.MaxLoss,
		Breakeven:      result.Breakeven,
		RecordedAt:     at,
	}

	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record ev: %w", err)
	}
	return nil
}

// GetPremiumHistory returns an entry's premium observations ascending by
// recorded-at. It distinguishes a missing entry from an entry with no rows.
func (s *LocalStorage) GetPremiumHistory(watchlistID uint) ([]interfaces.PremiumObservation, error) {
	if _, err := s.GetWatchlistEntry(watchlistID); err != nil {
		return nil, err
	}

	var rows []*models.DBPremiumHistory
	err := s.db.Where("watchlist_id = ?", watchlistID).
		Order("recorded_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get premium history: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHistory
	}

	observations := make([]interfaces.PremiumObservation, len(rows))
	for i, row := range rows {
		observations[i] = interfaces.PremiumObservation{
			ID:             row.ID,
			WatchlistID:    row.WatchlistID,
			ContractSymbol: row.ContractSymbol,
			Symbol:         row.Symbol,
			Strike:         row.Strike,
			Expiration:     row.Expiration,
			Kind:           interfaces.OptionKind(row.OptionType),
			Premium:        row.Premium,
			RecordedAt:     row.RecordedAt,
		}
	}
	return observations, nil
}

// GetEVHistory returns an entry's EV snapshots ascending by recorded-at.
func (s *LocalStorage) GetEVHistory(watchlistID uint) ([]interfaces.EVObservation, error) {
	if _, err := s.GetWatchlistEntry(watchlistID); err != nil {
		return nil, err
	}

	var rows []*models.DBEVHistory
	err := s.db.Where("watchlist_id = ?", watchlistID).
		Order("recorded_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get ev history: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHistory
	}

	observations := make([]interfaces.EVObservation, len(rows))
	for i, row := range rows {
		observations[i] = interfaces.EVObservation{
			ID:             row.ID,
			WatchlistID:    row.WatchlistID,
			ContractSymbol: row.ContractSymbol,
			Result: interfaces.PricingResult{
				ExpectedValue: row.ExpectedValue,
				Probability:   row.Probability,
				Delta:         row.Delta,
				MaxGain:       row.MaxGain,
				MaxLoss:       row.MaxLoss,
				Breakeven:     row.Breakeven,
			},
			RecordedAt: row.RecordedAt,
		}
	}
	return observations, nil
}

// ReplaceSmartSuggestions swaps the suggestion table for a fresh analysis run.
func (s *LocalStorage) ReplaceSmartSuggestions(suggestions []interfaces.SmartSuggestion) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.DBSmartSuggestion{}).Error; err != nil {
			return fmt.Errorf("failed to clear suggestions: %w", err)
		}

		for _, suggestion := range suggestions {
			row := models.DBSmartSuggestion{
				Symbol:         suggestion.Symbol,
				ContractSymbol: suggestion.ContractSymbol,
				Strike:         suggestion.Strike,
				Expiration:     suggestion.Expiration,
				OptionType:     string(suggestion.Kind),
				StockPrice:     suggestion.StockPrice,
				EV:             suggestion.EV,
				Probability:    suggestion.Probability,
				Delta:          suggestion.Delta,
				MaxGain:        suggestion.MaxGain,
				MaxLoss:        suggestion.MaxLoss,
				Breakeven:      suggestion.Breakeven,
				IV:             suggestion.IV,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to store suggestion: %w", err)
			}
		}

		return nil
	})
}

// GetSmartSuggestions returns the latest analysis run, highest EV first.
func (s *LocalStorage) GetSmartSuggestions() ([]interfaces.SmartSuggestion, error) {
	var rows []*models.DBSmartSuggestion
	if err := s.db.Order("ev DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get suggestions: %w", err)
	}

	suggestions := make([]interfaces.SmartSuggestion, len(rows))
	for i, row := range rows {
		suggestions[i] = interfaces.SmartSuggestion{
			Symbol:         row.Symbol,
			ContractSymbol: row.ContractSymbol,
			Strike:         row.Strike,
			Expiration:     row.Expiration,
			Kind:           interfaces.OptionKind(row.OptionType),
			StockPrice:     row.StockPrice,
			EV:             row.EV,
			Probability:    row.Probability,
			Delta:          row.Delta,
			MaxGain:        row.MaxGain,
			MaxLoss:        row.MaxLoss,
			Breakeven:      row.Breakeven,
			IV:             row.IV,
		}
	}
	return suggestions, nil
}

// Close closes the database connection
func (s *LocalStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// validateEntry enforces the all-or-none option field invariant.
func validateEntry(entry *interfaces.WatchlistEntry) error {
	if entry.OwnerUID == "" || entry.Symbol == "" {
		return fmt.Errorf("watchlist entry requires owner and symbol")
	}

	hasKind := entry.Kind != interfaces.KindNone
	hasStrike := entry.Strike != 0
	hasExpiration := entry.Expiration != ""

	if !hasKind && !hasStrike && !hasExpiration {
		// Plain stock entry.
		return nil
	}
	if !hasKind || !hasStrike || !hasExpiration {
		return fmt.Errorf("option entry requires kind, strike and expiration together")
	}
	if err := entry.Kind.Validate(); err != nil {
		return err
	}
	if _, err := entry.ExpirationDate(); err != nil {
		return fmt.Errorf("invalid expiration date %q: %w", entry.Expiration, err)
	}
	return nil
}

func userToProfile(user *models.DBUser) *interfaces.UserProfile {
	return &interfaces.UserProfile{
		UserUID:       user.UserUID,
		Email:         user.Email,
		Name:          user.Name,
		PreferredView: user.PreferredView,
		AccountType:   user.AccountType,
		LastLogin:     user.LastLogin,
	}
}

func entryToValue(dbEntry *models.DBWatchlistEntry) *interfaces.WatchlistEntry {
	return &interfaces.WatchlistEntry{
		ID:         dbEntry.ID,
		OwnerUID:   dbEntry.UserUID,
		Symbol:     dbEntry.Symbol,
		Kind:       interfaces.OptionKind(dbEntry.OptionType),
		Strike:     dbEntry.Strike,
		Expiration: dbEntry.Expiration,
		AddedAt:    dbEntry.AddedAt,
	}
}
