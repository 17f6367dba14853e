package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/arenachess/backend/internal/domain"
)

const recentResultsKey = "games:recent"

// RecentResults keeps a capped, newest-first list of finished games so the
// recent-games endpoint can usually skip the database.
type RecentResults struct {
	client   *redis.Client
	capacity int
}

// NewRecentResults wraps an already-connected client. Tests hand in a client
// pointed at miniredis.
func NewRecentResults(client *redis.Client, capacity int) *RecentResults {
	return &RecentResults{client: client, capacity: capacity}
}

// Push prepends the record and trims the list back to capacity.
func (c *RecentResults) Push(ctx context.Context, rec domain.GameRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode game %s: %v", rec.SessionID, err)
	}

	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, recentResultsKey, data)
	pipe.LTrim(ctx, recentResultsKey, 0, int64(c.capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache game %s: %v", rec.SessionID, err)
	}
	return nil
}

// Recent returns up to limit cached records, newest first. Entries that fail
// to decode are skipped rather than poisoning the whole read.
func (c *RecentResults) Recent(ctx context.Context, limit int) ([]domain.GameRecord, error) {
	raw, err := c.client.LRange(ctx, recentResultsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent games: %v", err)
	}

	records := make([]domain.GameRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.GameRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			log.Printf("[REDIS] Skipping corrupt recent-games entry: %v", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
