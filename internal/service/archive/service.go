package archive

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/arenachess/backend/internal/domain"
)

// GameRepository is the durable store for finished games.
type GameRepository interface {
	SaveGame(ctx context.Context, rec domain.GameRecord) error
	RecentGames(ctx context.Context, limit int) ([]domain.GameRecord, error)
}

// RecentCache is the hot, capped copy of the latest results. Optional: a nil
// cache means every read goes to the repository.
type RecentCache interface {
	Push(ctx context.Context, rec domain.GameRecord) error
	Recent(ctx context.Context, limit int) ([]domain.GameRecord, error)
}

const saveTimeout = 10 * time.Second

// Service persists finished games off the gameplay path. Failures here are
// logged and swallowed; they must never reach a live session.
type Service struct {
	repo  GameRepository
	cache RecentCache
	wg    sync.WaitGroup
}

func NewService(repo GameRepository, cache RecentCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Save hands the record off asynchronously and returns immediately.
func (s *Service) Save(rec domain.GameRecord) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		s.saveNow(ctx, rec)
	}()
}

func (s *Service) saveNow(ctx context.Context, rec domain.GameRecord) {
	if err := s.repo.SaveGame(ctx, rec); err != nil {
		log.Printf("[ARCHIVE] Failed to save game %s: %v", rec.SessionID, err)
	}
	if s.cache == nil {
		return
	}
	if err := s.cache.Push(ctx, rec); err != nil {
		log.Printf("[ARCHIVE] Failed to cache game %s: %v", rec.SessionID, err)
	}
}

// Flush blocks until every in-flight save has finished. Called on shutdown.
func (s *Service) Flush() {
	s.wg.Wait()
}

// RecentGames serves from the cache when it has anything, falling back to the
// repository otherwise.
func (s *Service) RecentGames(ctx context.Context, limit int) ([]domain.GameRecord, error) {
	if s.cache != nil {
		records, err := s.cache.Recent(ctx, limit)
		if err != nil {
			log.Printf("[ARCHIVE] Recent-games cache read failed, using database: %v", err)
		} else if len(records) > 0 {
			return records, nil
		}
	}
	return s.repo.RecentGames(ctx, limit)
}
