package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/arenachess/backend/internal/domain"
)

// RecentGamesSource serves finished games, newest first.
type RecentGamesSource interface {
	RecentGames(ctx context.Context, limit int) ([]domain.GameRecord, error)
}

// MakeHandleRecentGames returns the GET /api/games/recent handler. The limit
// query parameter is clamped to maxLimit.
func MakeHandleRecentGames(source RecentGamesSource, maxLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := maxLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			if n < maxLimit {
				limit = n
			}
		}

		records, err := source.RecentGames(r.Context(), limit)
		if err != nil {
			log.Printf("[API] Failed to fetch recent games: %v", err)
			http.Error(w, "Failed to fetch recent games", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []domain.GameRecord{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
}

// HandleHealth reports process liveness.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
