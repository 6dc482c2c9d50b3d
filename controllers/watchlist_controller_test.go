package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"optionscope/database"
	"optionscope/interfaces"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatchlistRouter(t *testing.T) (*gin.Engine, *database.LocalStorage) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	storage, err := database.NewLocalStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	router := gin.New()
	controller := NewWatchlistController(storage)
	router.POST("/api/v1/watchlist", controller.HandleAddEntry)
	router.DELETE("/api/v1/watchlist/:id", controller.HandleRemoveEntry)
	router.GET("/api/v1/watchlist/user/:uid", controller.HandleGetWatchlist)
	router.GET("/api/v1/watchlist/:id/premium-history", controller.HandleGetPremiumHistory)
	router.GET("/api/v1/watchlist/:id/ev-history", controller.HandleGetEVHistory)
	return router, storage
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandleAddEntry(t *testing.T) {
	router, _ := newWatchlistRouter(t)

	w := postJSON(t, router, "/api/v1/watchlist", AddWatchlistRequest{
		UserUID:    "user-1",
		Symbol:     "aapl",
		OptionType: "CALL",
		Strike:     145,
		Expiration: "2025-04-18",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entry struct {
			ID     uint   `json:"ID"`
			Symbol string `json:"Symbol"`
		} `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Entry.Symbol, "symbol must be normalized to upper case")
}

func TestHandleAddEntryRejectsPartialOptionFields(t *testing.T) {
	router, _ := newWatchlistRouter(t)

	w := postJSON(t, router, "/api/v1/watchlist", AddWatchlistRequest{
		UserUID:    "user-1",
		Symbol:     "AAPL",
		OptionType: "call",
		// strike and expiration missing
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryEndpointsDistinguishMissingFromEmpty(t *testing.T) {
	router, storage := newWatchlistRouter(t)

	entry, err := storage.AddWatchlistEntry(interfaces.WatchlistEntry{
		OwnerUID:   "user-1",
		Symbol:     "AAPL",
		Kind:       interfaces.KindCall,
		Strike:     145,
		Expiration: "2025-04-18",
	})
	require.NoError(t, err)

	t.Run("no history yet", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/watchlist/1/premium-history", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "No history recorded")
	})

	t.Run("entry does not exist", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/watchlist/999/ev-history", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "entry not found")
	})

	t.Run("recorded history is returned ascending", func(t *testing.T) {
		base := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
		require.NoError(t, storage.RecordPremium(*entry, "AAPL250418C00145000", 6.75, base))
		require.NoError(t, storage.RecordPremium(*entry, "AAPL250418C00145000", 7.10, base.Add(30*time.Minute)))

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/watchlist/1/premium-history", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Count   int `json:"count"`
			History []struct {
				Premium float64 `json:"premium"`
			} `json:"history"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 2, resp.Count)
		assert.InDelta(t, 6.75, resp.History[0].Premium, 1e-9)
		assert.InDelta(t, 7.10, resp.History[1].Premium, 1e-9)
	})
}

func TestHandleRemoveEntry(t *testing.T) {
	router, storage := newWatchlistRouter(t)

	entry, err := storage.AddWatchlistEntry(interfaces.WatchlistEntry{
		OwnerUID:   "user-1",
		Symbol:     "AAPL",
		Kind:       interfaces.KindCall,
		Strike:     145,
		Expiration: "2025-04-18",
	})
	require.NoError(t, err)
	require.NoError(t, storage.RecordPremium(*entry, "AAPL250418C00145000", 6.75, time.Now().UTC()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/api/v1/watchlist/1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// History is cascaded away with the entry.
	_, err = storage.GetPremiumHistory(entry.ID)
	assert.ErrorIs(t, err, database.ErrEntryNotFound)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("DELETE", "/api/v1/watchlist/1", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
