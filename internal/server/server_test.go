package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alignify/formcoach/internal/pose"
	"github.com/alignify/formcoach/internal/store"
)

// historyServer serves a store holding two squat sessions and a plank.
func historyServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	start := time.Date(2026, 3, 9, 6, 45, 0, 0, time.UTC)
	for i, s := range []struct {
		id       string
		kind     pose.Kind
		count    int
		accuracy float64
	}{
		{"squat-mon", pose.Squat, 12, 91.5},
		{"squat-wed", pose.Squat, 15, 96},
		{"plank-wed", pose.Plank, 45, 88},
	} {
		began := start.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, st.Sessions().Create(&store.Session{
			ID:              s.id,
			Exercise:        s.kind,
			Count:           s.count,
			Frames:          300,
			DurationSeconds: 90,
			Accuracy:        s.accuracy,
			StartedAt:       began,
			EndedAt:         began.Add(90 * time.Second),
		}))
	}

	return New(Config{Store: st, Hub: NewHub(nil)})
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s := historyServer(t)

	rec := serve(s, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Status      string `json:"status"`
		Uptime      string `json:"uptime"`
		LiveClients *int   `json:"live_clients"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Uptime)
	require.NotNil(t, body.LiveClients, "health reports live feed clients when a hub is attached")
	assert.Zero(t, *body.LiveClients)

	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		assert.Equal(t, http.StatusMethodNotAllowed, serve(s, method, "/api/health").Code, method)
	}
}

func TestServer_HealthWithoutHub(t *testing.T) {
	rec := serve(New(Config{}), http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.NotContains(t, body, "live_clients")
}

func TestServer_SessionHistory(t *testing.T) {
	s := historyServer(t)

	t.Run("lists newest first", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/api/sessions")
		require.Equal(t, http.StatusOK, rec.Code)

		var listed struct {
			Sessions []store.Session `json:"sessions"`
			Total    int             `json:"total"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
		require.Equal(t, 3, listed.Total)
		assert.Equal(t, "plank-wed", listed.Sessions[0].ID)
		assert.Equal(t, "squat-mon", listed.Sessions[2].ID)
	})

	t.Run("filters by exercise", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/api/sessions?exercise=squat&limit=1")
		require.Equal(t, http.StatusOK, rec.Code)

		var listed struct {
			Sessions []store.Session `json:"sessions"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
		require.Len(t, listed.Sessions, 1)
		assert.Equal(t, "squat-wed", listed.Sessions[0].ID)
	})

	t.Run("rejects unknown exercise", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/api/sessions?exercise=burpee").Code)
	})

	t.Run("totals per exercise", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/api/sessions/totals")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Totals []store.ExerciseTotals `json:"totals"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Len(t, body.Totals, 2)
		assert.Equal(t, pose.Plank, body.Totals[0].Exercise)
		assert.Equal(t, pose.Squat, body.Totals[1].Exercise)
		assert.Equal(t, 27, body.Totals[1].TotalCount)
		assert.Equal(t, 2, body.Totals[1].Sessions)
	})

	t.Run("one session", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/api/sessions/plank-wed")
		require.Equal(t, http.StatusOK, rec.Code)

		var got store.Session
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, pose.Plank, got.Exercise)
		assert.Equal(t, 45, got.Count)

		assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/sessions/nope").Code)
		assert.Equal(t, http.StatusMethodNotAllowed, serve(s, http.MethodPut, "/api/sessions/plank-wed").Code)
	})
}

func TestServer_HistoryChart(t *testing.T) {
	s := historyServer(t)

	rec := serve(s, http.MethodGet, "/api/sessions/chart?exercise=squat")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	page := rec.Body.String()
	assert.Contains(t, page, "formcoach history")
	assert.Contains(t, page, "squat, 2 sessions")
	assert.Contains(t, page, "Accuracy (%)")

	assert.Equal(t, http.StatusMethodNotAllowed, serve(s, http.MethodPost, "/api/sessions/chart").Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/api/sessions/chart?limit=0").Code)
}

func TestServer_RoutesNeedCollaborators(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/sessions", "/api/sessions/chart", "/ws/live", "/"} {
		assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, path).Code, path)
	}
}

func TestServer_DashboardUI(t *testing.T) {
	dir := t.TempDir()
	index := "<html><body>formcoach</body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0o644))

	s := New(Config{StaticDir: dir})

	rec := serve(s, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, index, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/history.js").Code)
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/health").Code, "API routes win over the UI")
}
