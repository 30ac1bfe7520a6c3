package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCount int

func (f fixedCount) Count() int           { return int(f) }
func (f fixedCount) ConnectionCount() int { return int(f) }

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 4*time.Second, "3m 4s"},
		{2 * time.Hour, "2h 0m 0s"},
		{26*time.Hour + 3*time.Minute + 4*time.Second + 900*time.Millisecond, "1d 2h 3m 4s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUptime(tt.in), tt.in.String())
	}
}

func TestHandler_Check(t *testing.T) {
	gin.SetMode(gin.TestMode)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h := NewHandler(fixedCount(3), fixedCount(7), started)
	h.now = func() time.Time { return started.Add(90 * time.Second) }

	r := gin.New()
	r.GET("/health", h.Check)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool   `json:"success"`
		Data    Status `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "healthy", body.Data.Status)
	assert.Equal(t, int64(90), body.Data.Uptime.Seconds)
	assert.Equal(t, "1m 30s", body.Data.Uptime.Human)
	assert.Equal(t, "up", body.Data.Services.Sessions)
	assert.Equal(t, 3, body.Data.Services.ActiveSessions)
	assert.Equal(t, 7, body.Data.Services.Connections)
}
