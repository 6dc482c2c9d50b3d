package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"optionscope/controllers"
	"optionscope/database"
	"optionscope/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment")
	}

	apiKey := os.Getenv("ALPACA_API_KEY")
	secretKey := os.Getenv("ALPACA_SECRET_KEY")
	if apiKey == "" {
		logger.WithError(&services.ConfigurationError{Setting: "ALPACA_API_KEY"}).Fatal("Cannot start")
	}
	if secretKey == "" {
		logger.WithError(&services.ConfigurationError{Setting: "ALPACA_SECRET_KEY"}).Fatal("Cannot start")
	}

	dbPath := envOrDefault("DB_PATH", "data/optionscope.db")
	storage, err := database.NewLocalStorage(dbPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}
	defer storage.Close()

	hoursCfg := services.DefaultMarketHoursConfig()
	if tz := os.Getenv("MARKET_TIMEZONE"); tz != "" {
		hoursCfg.Timezone = tz
	}
	if open := os.Getenv("MARKET_OPEN"); open != "" {
		hoursCfg.OpenHour, hoursCfg.OpenMinute = mustParseClock(logger, "MARKET_OPEN", open)
	}
	if closeAt := os.Getenv("MARKET_CLOSE"); closeAt != "" {
		hoursCfg.CloseHour, hoursCfg.CloseMinute = mustParseClock(logger, "MARKET_CLOSE", closeAt)
	}

	gate, err := services.NewMarketHoursGate(hoursCfg, services.NewUSHolidayCalendar())
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize trading-hours gate")
	}

	pollCfg := services.DefaultPollingConfig()
	if minutes := os.Getenv("POLL_INTERVAL_MINUTES"); minutes != "" {
		m, err := strconv.Atoi(minutes)
		if err != nil || m <= 0 {
			logger.WithField("POLL_INTERVAL_MINUTES", minutes).Fatal("Invalid poll interval")
		}
		pollCfg.Interval = time.Duration(m) * time.Minute
	}
	if rate := os.Getenv("RISK_FREE_RATE"); rate != "" {
		r, err := strconv.ParseFloat(rate, 64)
		if err != nil {
			logger.WithField("RISK_FREE_RATE", rate).Fatal("Invalid risk-free rate")
		}
		pollCfg.RiskFreeRate = r
	}

	marketData := services.NewAlpacaMarketDataService(apiKey, secretKey)
	pollingManager := services.NewPollingManager(storage, storage, marketData, gate, pollCfg)
	pollingManager.Start()
	defer pollingManager.Shutdown()

	suggestionCfg := services.DefaultSuggestionConfig()
	suggestionCfg.RiskFreeRate = pollCfg.RiskFreeRate
	suggestionService := services.NewSuggestionService(marketData, storage, suggestionCfg)

	router := gin.Default()

	marketController := controllers.NewMarketDataController(marketData)
	userController := controllers.NewUserController(storage)
	watchlistController := controllers.NewWatchlistController(storage)
	pollingController := controllers.NewPollingController(pollingManager)
	suggestionController := controllers.NewSuggestionController(suggestionService, storage)

	router.GET("/stocks/:symbol", marketController.HandleGetStockQuote)
	router.GET("/options/:symbol", marketController.HandleGetOptionChain)

	api := router.Group("/api/v1")
	{
		api.POST("/users", userController.HandleRegisterUser)
		api.PATCH("/users/:uid", userController.HandleUpdateUser)
		api.GET("/users/:uid", userController.HandleGetUserProfile)

		api.POST("/watchlist", watchlistController.HandleAddEntry)
		api.DELETE("/watchlist/:id", watchlistController.HandleRemoveEntry)
		api.GET("/watchlist/user/:uid", watchlistController.HandleGetWatchlist)
		api.GET("/watchlist/:id/premium-history", watchlistController.HandleGetPremiumHistory)
		api.GET("/watchlist/:id/ev-history", watchlistController.HandleGetEVHistory)

		api.POST("/polling/run", pollingController.HandleRunOnce)
		api.GET("/polling/status", pollingController.HandleGetStatus)

		api.GET("/suggestions", suggestionController.HandleGetSuggestions)
		api.POST("/suggestions/refresh", suggestionController.HandleRefreshSuggestions)
	}

	port := envOrDefault("PORT", "8080")
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", port).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	pollingManager.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// mustParseClock parses "HH:MM" session bounds.
func mustParseClock(logger *logrus.Logger, setting, value string) (int, int) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) == 2 {
		hour, errH := strconv.Atoi(parts[0])
		minute, errM := strconv.Atoi(parts[1])
		if errH == nil && errM == nil && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
			return hour, minute
		}
	}
	logger.WithField(setting, value).Fatal("Invalid session clock bound")
	return 0, 0
}
