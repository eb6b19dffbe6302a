package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(3, 2, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/questions", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1234"))
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1235"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1236"))
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2:1234"), "other clients are unaffected")

	now = now.Add(20 * time.Second)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1237"), "one token refills every 20s")
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(3, 1, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(time.Hour)
	rl.Allow("b")
	assert.Equal(t, 1, rl.Prune())
}
