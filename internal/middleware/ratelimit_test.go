package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/bidman/internal/model"
)

func newTestRateLimiter(generalBurst, bidBurst int) *RateLimiter {
	return NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // テスト中の補充を事実上無効化
		GeneralBurst:    generalBurst,
		BidRate:         rate.Limit(0.001),
		BidBurst:        bidBurst,
		CleanupInterval: time.Hour,
	})
}

func requestWithSession(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	sess := &model.Session{ID: "tok", SiteID: "site-1", UserID: userID}
	return req.WithContext(ContextWithSession(req.Context(), sess))
}

func TestBidMiddleware_ExceedingBurstReturns429(t *testing.T) {
	rl := newTestRateLimiter(100, 2)
	defer rl.Stop()

	handler := rl.BidMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestWithSession("user-a"))
		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Result().StatusCode)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession("user-a"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
	if w.Result().Header.Get("Retry-After") == "" {
		t.Error("429 response must carry a Retry-After header")
	}
}

func TestBidMiddleware_LimitersAreIndependentPerUser(t *testing.T) {
	rl := newTestRateLimiter(100, 1)
	defer rl.Stop()

	handler := rl.BidMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// user-aがバーストを使い切る
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession("user-a"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession("user-a"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("user-a second request: status = %d, want 429", w.Result().StatusCode)
	}

	// user-bには影響しない
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession("user-b"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("user-b: status = %d, want 200", w.Result().StatusCode)
	}

	if rl.BidLimiterCount() != 2 {
		t.Errorf("bid limiter entries = %d, want 2", rl.BidLimiterCount())
	}
}

func TestGeneralMiddleware_MissingSessionReturns401(t *testing.T) {
	rl := newTestRateLimiter(10, 10)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/test", nil))
	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
