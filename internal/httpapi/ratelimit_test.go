package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := newRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	t.Run("allows up to the limit per window", func(t *testing.T) {
		if !l.allow("10.0.0.1") || !l.allow("10.0.0.1") {
			t.Fatal("first two requests rejected")
		}
		if l.allow("10.0.0.1") {
			t.Fatal("third request within window allowed")
		}
	})

	t.Run("origins are independent", func(t *testing.T) {
		if !l.allow("10.0.0.2") {
			t.Fatal("fresh origin rejected")
		}
	})

	t.Run("window reset restores the budget", func(t *testing.T) {
		now = now.Add(time.Minute)
		if !l.allow("10.0.0.1") {
			t.Fatal("request after window elapsed rejected")
		}
	})

	t.Run("expired windows are swept", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		l.allow("10.0.0.3")
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, stale := l.origins["10.0.0.2"]; stale {
			t.Error("expired origin window not swept")
		}
	})
}

func TestLimitRate_Middleware(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)
	called := 0
	h := limitRate(limiter, func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/readings", nil)
	req.RemoteAddr = "192.168.1.9:51234"

	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusOK || called != 1 {
		t.Fatalf("first request: status=%d called=%d", rec.Code, called)
	}

	rec = httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status=%d; want 429", rec.Code)
	}
	if called != 1 {
		t.Fatalf("handler reached past the limiter: called=%d", called)
	}
}

func TestLimitRate_NilLimiterIsOpen(t *testing.T) {
	called := 0
	h := limitRate(nil, func(w http.ResponseWriter, r *http.Request) {
		called++
	})
	req := httptest.NewRequest(http.MethodGet, "/readings", nil)
	for i := 0; i < 100; i++ {
		h(httptest.NewRecorder(), req)
	}
	if called != 100 {
		t.Fatalf("called = %d; want 100", called)
	}
}
