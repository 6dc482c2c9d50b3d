package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"optionscope/database"
	"optionscope/interfaces"

	"github.com/gin-gonic/gin"
)

// WatchlistController handles watchlist CRUD and history retrieval
type WatchlistController struct {
	storage *database.LocalStorage
}

// NewWatchlistController creates a new watchlist controller
func NewWatchlistController(storage *database.LocalStorage) *WatchlistController {
	return &WatchlistController{
		storage: storage,
	}
}

// AddWatchlistRequest represents a request to track a position
type AddWatchlistRequest struct {
	UserUID    string  `json:"user_uid" binding:"required"`
	Symbol     string  `json:"symbol" binding:"required"`
	OptionType string  `json:"option_type"`
	Strike     float64 `json:"strike"`
	Expiration string  `json:"expiration"`
}

// HandleAddEntry adds an entry to a user's watchlist
// POST /api/v1/watchlist
func (wc *WatchlistController) HandleAddEntry(c *gin.Context) {
	var req AddWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	entry, err := wc.storage.AddWatchlistEntry(interfaces.WatchlistEntry{
		OwnerUID:   req.UserUID,
		Symbol:     strings.ToUpper(req.Symbol),
		Kind:       interfaces.OptionKind(strings.ToLower(req.OptionType)),
		Strike:     req.Strike,
		Expiration: req.Expiration,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to add watchlist entry",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Entry added to watchlist",
		"entry":   entry,
	})
}

// HandleRemoveEntry removes an entry and its recorded history
// DELETE /api/v1/watchlist/:id
func (wc *WatchlistController) HandleRemoveEntry(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid watchlist id",
		})
		return
	}

	if err := wc.storage.RemoveWatchlistEntry(uint(id)); err != nil {
		if errors.Is(err, database.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Watchlist entry not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to remove watchlist entry",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Entry removed from watchlist",
	})
}

// HandleGetWatchlist lists a user's entries
// GET /api/v1/watchlist/user/:uid?type=stocks|options
func (wc *WatchlistController) HandleGetWatchlist(c *gin.Context) {
	uid := c.Param("uid")
	view := c.Query("type")

	entries, err := wc.storage.GetWatchlist(uid, view)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get watchlist",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

// HandleGetPremiumHistory returns an entry's premium time series
// GET /api/v1/watchlist/:id/premium-history
func (wc *WatchlistController) HandleGetPremiumHistory(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid watchlist id",
		})
		return
	}

	history, err := wc.storage.GetPremiumHistory(uint(id))
	if err != nil {
		wc.renderHistoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(history),
		"history": history,
	})
}

// HandleGetEVHistory returns an entry's expected-value time series
// GET /api/v1/watchlist/:id/ev-history
func (wc *WatchlistController) HandleGetEVHistory(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid watchlist id",
		})
		return
	}

	history, err := wc.storage.GetEVHistory(uint(id))
	if err != nil {
		wc.renderHistoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(history),
		"history": history,
	})
}

// renderHistoryError keeps "no history yet" distinct from "entry not found".
func (wc *WatchlistController) renderHistoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Watchlist entry not found",
		})
	case errors.Is(err, database.ErrNoHistory):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No history recorded for entry",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get history",
			"details": err.Error(),
		})
	}
}
