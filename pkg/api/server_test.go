package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStatus struct {
	online      int
	connections int
	startedAt   time.Time
}

func (s *stubStatus) OnlineUsers() int       { return s.online }
func (s *stubStatus) ActiveConnections() int { return s.connections }
func (s *stubStatus) StartedAt() time.Time   { return s.startedAt }

func TestLiveness(t *testing.T) {
	router := NewRouter(&stubStatus{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestReadiness(t *testing.T) {
	t.Run("not ready before listener is up", func(t *testing.T) {
		router := NewRouter(&stubStatus{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("ready once listener is up", func(t *testing.T) {
		router := NewRouter(&stubStatus{startedAt: time.Now()})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestStatus(t *testing.T) {
	started := time.Now().Add(-90 * time.Second)
	router := NewRouter(&stubStatus{online: 3, connections: 5, startedAt: started})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.OnlineUsers)
	assert.Equal(t, 5, resp.ActiveConnections)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, int64(90))
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.applyDefaults()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
}
