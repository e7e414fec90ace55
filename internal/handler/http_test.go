package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/floor-guesser/internal/config"
	"github.com/floor-guesser/internal/domain"
	"github.com/floor-guesser/internal/game"
	"github.com/floor-guesser/internal/service"
	"github.com/floor-guesser/internal/websocket"
)

type fakeStore struct {
	results []domain.GameResult
}

var (
	testFloor    = domain.Floor{ID: 1, ImagePath: "/uploads/floors/1.png", WidthPx: 300, HeightPx: 400}
	testLocation = domain.Location{ID: 7, FloorID: 1, X: 100, Y: 100, ImagePath: "/uploads/locations/7.jpg"}
	testUsers    = map[int64]string{1: "Ann A", 2: "Bob B", 3: "Cid C"}
)

func (f *fakeStore) GetLocation(ctx context.Context, id int64) (*domain.Location, error) {
	if id != testLocation.ID {
		return nil, domain.ErrLocationNotFound
	}
	loc := testLocation
	return &loc, nil
}

func (f *fakeStore) RandomLocation(ctx context.Context, floorID *int64) (*domain.Location, error) {
	if floorID != nil && *floorID != testFloor.ID {
		return nil, domain.ErrLocationNotFound
	}
	loc := testLocation
	return &loc, nil
}

func (f *fakeStore) GetFloor(ctx context.Context, id int64) (*domain.Floor, error) {
	if id != testFloor.ID {
		return nil, domain.ErrFloorNotFound
	}
	floor := testFloor
	return &floor, nil
}

func (f *fakeStore) ListFloors(ctx context.Context) ([]domain.Floor, error) {
	return []domain.Floor{testFloor}, nil
}

func (f *fakeStore) UserDisplayName(ctx context.Context, userID int64) (string, error) {
	name, ok := testUsers[userID]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return name, nil
}

func (f *fakeStore) UserDisplayNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	return testUsers, nil
}

func (f *fakeStore) BestScoreForUser(ctx context.Context, userID int64) (*int, error) {
	var best *int
	for _, r := range f.results {
		if r.UserID == userID && (best == nil || r.TotalScore > *best) {
			score := r.TotalScore
			best = &score
		}
	}
	return best, nil
}

func (f *fakeStore) InsertGameResult(ctx context.Context, userID int64, totalScore, roundsPlayed int) (int64, error) {
	f.results = append(f.results, domain.GameResult{UserID: userID, TotalScore: totalScore, RoundsPlayed: roundsPlayed})
	return int64(len(f.results)), nil
}

func (f *fakeStore) BestScorePerUser(ctx context.Context) ([]domain.UserBest, error) {
	best := map[int64]int{}
	for _, r := range f.results {
		if cur, ok := best[r.UserID]; !ok || r.TotalScore > cur {
			best[r.UserID] = r.TotalScore
		}
	}
	var bests []domain.UserBest
	for id, score := range best {
		bests = append(bests, domain.UserBest{UserID: id, Score: score})
	}
	return bests, nil
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

func newTestHandler(t *testing.T) (*Handler, *fakeStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &fakeStore{}
	svc := service.NewGameService(store, game.NewMemoryStore(0), config.DefaultConfig(), logger)
	return NewHandler(svc, websocket.NewHub(logger), "", logger), store
}

// do performs a request and decodes the envelope, leaving Data raw
func do(t *testing.T, h http.Handler, method, path, body string) (int, APIResponse, json.RawMessage) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env struct {
		APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decoding %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env.APIResponse, env.Data
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	code, resp, _ := do(t, h.Router(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp.Success)
}

func TestReadyFailsWhenStoreDown(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	code, _, _ := do(t, router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, code)

	h.AddReadinessCheck(failingPinger{})
	code, resp, _ := do(t, router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, false, resp.Success)
}

func TestGuess(t *testing.T) {
	h, _ := newTestHandler(t)
	code, _, data := do(t, h.Router(), http.MethodPost, "/api/guess",
		`{"location_id":7,"guess_x":100,"guess_y":100,"selected_floor":1}`)
	assert.Equal(t, http.StatusOK, code)

	var res domain.GuessResponse
	_ = json.Unmarshal(data, &res)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, true, res.Correct)
	assert.Equal(t, 100, res.CorrectX)
}

func TestGuessErrors(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	cases := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{`, http.StatusBadRequest},
		{"missing coordinates", `{"location_id":7}`, http.StatusBadRequest},
		{"unknown location", `{"location_id":99,"guess_x":1,"guess_y":1}`, http.StatusNotFound},
	}
	for _, c := range cases {
		code, resp, _ := do(t, router, http.MethodPost, "/api/guess", c.body)
		if code != c.code {
			t.Errorf("%s: code=%d want=%d", c.name, code, c.code)
		}
		if resp.Success || resp.Error == "" {
			t.Errorf("%s: expected error envelope, got %+v", c.name, resp)
		}
	}
}

func TestQuickPlayGuess(t *testing.T) {
	h, _ := newTestHandler(t)
	code, _, data := do(t, h.Router(), http.MethodPost, "/api/quickplay/guess",
		`{"location_id":7,"guess_x":100,"guess_y":100}`)
	assert.Equal(t, http.StatusOK, code)

	var res domain.QuickPlayResponse
	_ = json.Unmarshal(data, &res)
	assert.Equal(t, 1000, res.Score)
	assert.Equal(t, 1000, res.MaxScore)
}

func TestRandomLocationHidesCoordinates(t *testing.T) {
	h, _ := newTestHandler(t)
	code, _, data := do(t, h.Router(), http.MethodGet, "/api/locations/random?floor_id=1", "")
	assert.Equal(t, http.StatusOK, code)
	if strings.Contains(string(data), `"x"`) || strings.Contains(string(data), `"y"`) {
		t.Fatalf("coordinates leaked: %s", data)
	}

	code, _, _ = do(t, h.Router(), http.MethodGet, "/api/locations/random?floor_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestFloors(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	code, _, data := do(t, router, http.MethodGet, "/api/floors", "")
	assert.Equal(t, http.StatusOK, code)
	var floors []domain.Floor
	_ = json.Unmarshal(data, &floors)
	assert.Equal(t, 1, len(floors))

	code, _, _ = do(t, router, http.MethodGet, "/api/floors/2", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _, _ = do(t, router, http.MethodGet, "/api/floors/x", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGameFlow(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Router()

	code, _, data := do(t, router, http.MethodPost, "/api/games", `{"user_id":2}`)
	assert.Equal(t, http.StatusCreated, code)
	var snap game.Snapshot
	_ = json.Unmarshal(data, &snap)
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, 5, snap.TotalRounds)

	guess := `{"location_id":7,"guess_x":100,"guess_y":100,"selected_floor":1}`
	var round service.RoundResult
	for i := 0; i < 5; i++ {
		code, _, data = do(t, router, http.MethodPost, "/api/games/"+snap.ID+"/guess", guess)
		assert.Equal(t, http.StatusOK, code)
		round = service.RoundResult{}
		_ = json.Unmarshal(data, &round)
	}

	assert.Equal(t, 500, round.Game.TotalScore)
	assert.Equal(t, true, round.Game.Finished)
	if round.Completion == nil {
		t.Fatal("expected completion")
	}
	assert.Equal(t, 1, *round.Completion.Rank)
	assert.Equal(t, 1, len(store.results))

	code, _, _ = do(t, router, http.MethodPost, "/api/games/"+snap.ID+"/guess", guess)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStartGuestGameWithoutBody(t *testing.T) {
	h, _ := newTestHandler(t)
	code, _, _ := do(t, h.Router(), http.MethodPost, "/api/games", "")
	assert.Equal(t, http.StatusCreated, code)

	code, _, _ = do(t, h.Router(), http.MethodPost, "/api/games", `{"user_id":404}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRecordGameResult(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	code, _, data := do(t, router, http.MethodPost, "/api/game-results", `{"user_id":1,"total_score":300,"rounds_played":5}`)
	assert.Equal(t, http.StatusOK, code)
	var res map[string]interface{}
	_ = json.Unmarshal(data, &res)
	assert.Equal(t, float64(1), res["rank"])
	assert.Equal(t, true, res["isNewRecord"])
	assert.Equal(t, float64(0), res["previousBest"])

	code, _, data = do(t, router, http.MethodPost, "/api/game-results", `{"total_score":120,"rounds_played":5}`)
	assert.Equal(t, http.StatusOK, code)
	res = nil
	_ = json.Unmarshal(data, &res)
	assert.Equal(t, float64(120), res["score"])
	if _, ok := res["rank"]; ok {
		t.Fatalf("guest result should not carry a rank: %v", res)
	}

	code, _, _ = do(t, router, http.MethodPost, "/api/game-results", `{"user_id":1,"total_score":-1,"rounds_played":5}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLeaderboardAndHypothetical(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	for _, body := range []string{
		`{"user_id":1,"total_score":500,"rounds_played":5}`,
		`{"user_id":2,"total_score":300,"rounds_played":5}`,
		`{"user_id":3,"total_score":100,"rounds_played":5}`,
	} {
		code, _, _ := do(t, router, http.MethodPost, "/api/game-results", body)
		assert.Equal(t, http.StatusOK, code)
	}

	code, _, data := do(t, router, http.MethodGet, "/api/leaderboard?limit=2", "")
	assert.Equal(t, http.StatusOK, code)
	var entries []domain.LeaderboardEntry
	_ = json.Unmarshal(data, &entries)
	assert.Equal(t, 2, len(entries))
	assert.Equal(t, "Ann A", entries[0].Name)
	assert.Equal(t, 2, entries[1].Rank)

	code, _, data = do(t, router, http.MethodGet, "/api/leaderboard/hypothetical?score=300", "")
	assert.Equal(t, http.StatusOK, code)
	var hyp HypotheticalRankResponse
	_ = json.Unmarshal(data, &hyp)
	assert.Equal(t, 2, hyp.Rank)
	assert.Equal(t, 3, len(hyp.Leaderboard))

	code, _, _ = do(t, router, http.MethodGet, "/api/leaderboard/hypothetical", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, data = do(t, router, http.MethodGet, "/api/leaderboard/stats", "")
	assert.Equal(t, http.StatusOK, code)
	var stats domain.LeaderboardStats
	_ = json.Unmarshal(data, &stats)
	assert.Equal(t, 3, stats.TotalPlayers)
	assert.Equal(t, 500, stats.TopScore)
}

func TestUploadsServed(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "floors"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "floors", "1.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	h, _ := newTestHandler(t)
	h.uploadsDir = dir

	req := httptest.NewRequest(http.MethodGet, "/uploads/floors/1.png", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())
}
