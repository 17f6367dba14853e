package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenachess/backend/internal/domain"
)

type stubSource struct {
	records   []domain.GameRecord
	err       error
	lastLimit int
}

func (s *stubSource) RecentGames(ctx context.Context, limit int) ([]domain.GameRecord, error) {
	s.lastLimit = limit
	return s.records, s.err
}

func TestHandleRecentGames(t *testing.T) {
	source := &stubSource{records: []domain.GameRecord{
		{SessionID: "sess-1", WhiteID: 1, BlackID: 2, Outcome: domain.OutcomeWhiteWon},
	}}
	handler := MakeHandleRecentGames(source, 50)

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/api/games/recent", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, 50, source.lastLimit)

	var got []domain.GameRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "sess-1", got[0].SessionID)
}

func TestHandleRecentGamesClampsLimit(t *testing.T) {
	source := &stubSource{}
	handler := MakeHandleRecentGames(source, 50)

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/api/games/recent?limit=5", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, source.lastLimit)

	rr = httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/api/games/recent?limit=9999", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 50, source.lastLimit)
}

func TestHandleRecentGamesRejectsBadLimit(t *testing.T) {
	handler := MakeHandleRecentGames(&stubSource{}, 50)

	for _, limit := range []string{"abc", "-1", "0"} {
		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/api/games/recent?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	}
}

func TestHandleRecentGamesEmptyIsAnEmptyArray(t *testing.T) {
	handler := MakeHandleRecentGames(&stubSource{}, 50)

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/api/games/recent", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestHandleRecentGamesSourceFailure(t *testing.T) {
	handler := MakeHandleRecentGames(&stubSource{err: errors.New("db down")}, 50)

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/api/games/recent", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
