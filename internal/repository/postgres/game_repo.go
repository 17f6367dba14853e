package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/arenachess/backend/internal/domain"
)

// GameRepo persists finished game records.
type GameRepo struct {
	db *sql.DB
}

func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{db: db}
}

// SaveGame inserts the terminal record of a finished session. Saving the same
// session twice is a no-op, so a retried handoff cannot duplicate rows.
func (r *GameRepo) SaveGame(ctx context.Context, rec domain.GameRecord) error {
	moves, err := json.Marshal(rec.Moves)
	if err != nil {
		return fmt.Errorf("failed to encode moves: %v", err)
	}

	query := `
	INSERT INTO games (session_id, white_id, black_id, outcome, reason, initial_seconds, increment_seconds, moves, created_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (session_id) DO NOTHING;
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.SessionID,
		int64(rec.WhiteID),
		int64(rec.BlackID),
		string(rec.Outcome),
		string(rec.Reason),
		rec.TimeControl.InitialSeconds,
		rec.TimeControl.IncrementSeconds,
		moves,
		rec.CreatedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %v", rec.SessionID, err)
	}
	return nil
}

// RecentGames returns the most recently finished games, newest first.
func (r *GameRepo) RecentGames(ctx context.Context, limit int) ([]domain.GameRecord, error) {
	query := `
	SELECT session_id, white_id, black_id, outcome, reason, initial_seconds, increment_seconds, moves, created_at, finished_at
	FROM games
	ORDER BY finished_at DESC
	LIMIT $1;
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent games: %v", err)
	}
	defer rows.Close()

	var records []domain.GameRecord
	for rows.Next() {
		var rec domain.GameRecord
		var whiteID, blackID int64
		var moves []byte
		err := rows.Scan(
			&rec.SessionID,
			&whiteID,
			&blackID,
			&rec.Outcome,
			&rec.Reason,
			&rec.TimeControl.InitialSeconds,
			&rec.TimeControl.IncrementSeconds,
			&moves,
			&rec.CreatedAt,
			&rec.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game row: %v", err)
		}
		rec.WhiteID = domain.UserID(whiteID)
		rec.BlackID = domain.UserID(blackID)
		if err := json.Unmarshal(moves, &rec.Moves); err != nil {
			return nil, fmt.Errorf("failed to decode moves for game %s: %v", rec.SessionID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GameByID fetches a single finished game, or nil when it does not exist.
func (r *GameRepo) GameByID(ctx context.Context, sessionID string) (*domain.GameRecord, error) {
	query := `
	SELECT session_id, white_id, black_id, outcome, reason, initial_seconds, increment_seconds, moves, created_at, finished_at
	FROM games
	WHERE session_id = $1;
	`
	var rec domain.GameRecord
	var whiteID, blackID int64
	var moves []byte
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID,
		&whiteID,
		&blackID,
		&rec.Outcome,
		&rec.Reason,
		&rec.TimeControl.InitialSeconds,
		&rec.TimeControl.IncrementSeconds,
		&moves,
		&rec.CreatedAt,
		&rec.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %s: %v", sessionID, err)
	}
	rec.WhiteID = domain.UserID(whiteID)
	rec.BlackID = domain.UserID(blackID)
	if err := json.Unmarshal(moves, &rec.Moves); err != nil {
		return nil, fmt.Errorf("failed to decode moves for game %s: %v", sessionID, err)
	}
	return &rec, nil
}
