package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/innovasus/innovasus/pkg/response"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/login", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return router
}

func hitFrom(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/login", nil)
	req.RemoteAddr = ip + ":12345"
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsNormalRequests(t *testing.T) {
	router := limitedRouter(NewRateLimiter(10, 10))

	w := hitFrom(router, "192.168.1.1")
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestRateLimit_BlocksExcessiveRequests(t *testing.T) {
	router := limitedRouter(NewRateLimiter(1, 2))

	// Exhaust the burst; the last request must be rejected.
	var last *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		last = hitFrom(router, "10.0.0.1")
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d after burst exceeded, got %d", http.StatusTooManyRequests, last.Code)
	}

	var resp response.Response
	if err := json.Unmarshal(last.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse 429 body: %v", err)
	}
	if resp.Code != 429 {
		t.Errorf("expected envelope code 429, got %d", resp.Code)
	}
	if resp.Message == "" {
		t.Error("expected a rejection message in the envelope")
	}
}

func TestRateLimit_IndependentPerIP(t *testing.T) {
	router := limitedRouter(NewRateLimiter(1, 1))

	if w := hitFrom(router, "10.0.0.1"); w.Code != http.StatusOK {
		t.Errorf("IP1 first request: expected %d, got %d", http.StatusOK, w.Code)
	}

	// A second IP keeps its own untouched burst.
	if w := hitFrom(router, "10.0.0.2"); w.Code != http.StatusOK {
		t.Errorf("IP2 first request: expected %d, got %d", http.StatusOK, w.Code)
	}
}
