package controllers

import (
	"net/http"

	"optionscope/interfaces"
	"optionscope/services"

	"github.com/gin-gonic/gin"
)

// SuggestionController serves the positive-EV chain scanner
type SuggestionController struct {
	suggestionService *services.SuggestionService
	store             interfaces.SuggestionStore
}

// NewSuggestionController creates a new suggestion controller
func NewSuggestionController(suggestionService *services.SuggestionService, store interfaces.SuggestionStore) *SuggestionController {
	return &SuggestionController{
		suggestionService: suggestionService,
		store:             store,
	}
}

// HandleGetSuggestions returns the latest stored scan
// GET /api/v1/suggestions
func (sc *SuggestionController) HandleGetSuggestions(c *gin.Context) {
	suggestions, err := sc.store.GetSmartSuggestions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get suggestions",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":       len(suggestions),
		"suggestions": suggestions,
	})
}

// HandleRefreshSuggestions runs a new scan and returns the selection
// POST /api/v1/suggestions/refresh
func (sc *SuggestionController) HandleRefreshSuggestions(c *gin.Context) {
	suggestions, err := sc.suggestionService.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Suggestion scan failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Suggestion scan complete",
		"count":       len(suggestions),
		"suggestions": suggestions,
	})
}
