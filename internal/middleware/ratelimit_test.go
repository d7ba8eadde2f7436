package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/premierpass/premier-pass/internal/config"
	"github.com/premierpass/premier-pass/internal/utils"
)

func tokenFor(t *testing.T, userID uint64) string {
	t.Helper()
	tok, err := utils.NewAccessToken("k", userID, "student", 5)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok.Token
}

func newBucket(t *testing.T, capacity int) (srv *miniredis.Miniredis, cfg config.RateLimitConfig, rdb *redis.Client) {
	t.Helper()
	srv = miniredis.RunT(t)
	rdb = redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg = config.RateLimitConfig{
		Enabled:        true,
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "pp:rl",
	}
	return srv, cfg, rdb
}

func TestTokenBucketLimitsAfterCapacity(t *testing.T) {
	srv, cfg, rdb := newBucket(t, 2)
	mw := NewTokenBucket(cfg, rdb)

	for i, wantRemaining := range []string{"1", "0"} {
		rec, _ := serve(t, "", mw)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Fatalf("request %d: expected %s remaining, got %q", i, wantRemaining, got)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Fatalf("request %d: expected limit 2, got %q", i, got)
		}
	}

	rec, _ := serve(t, "", mw)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the bucket is empty, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got == "" || got == "0" {
		t.Fatalf("expected a positive Retry-After, got %q", got)
	}

	key := "pp:rl:ip:192.0.2.1"
	if !srv.Exists(key) {
		t.Fatalf("expected bucket state under %s, keys: %v", key, srv.Keys())
	}
	if ttl := srv.TTL(key); ttl <= 0 || ttl > cfg.TTL {
		t.Fatalf("expected bucket ttl within %s, got %s", cfg.TTL, ttl)
	}
}

func TestTokenBucketKeepsClientsApart(t *testing.T) {
	_, cfg, rdb := newBucket(t, 1)
	cfg.KeyStrategy = "user"
	mw := NewTokenBucket(cfg, rdb)

	alice := tokenFor(t, 1)
	bob := tokenFor(t, 2)
	if rec, _ := serve(t, alice, JWTAuth("k"), mw); rec.Code != http.StatusNoContent {
		t.Fatalf("alice first: expected 204, got %d", rec.Code)
	}
	if rec, _ := serve(t, alice, JWTAuth("k"), mw); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("alice second: expected 429, got %d", rec.Code)
	}
	if rec, _ := serve(t, bob, JWTAuth("k"), mw); rec.Code != http.StatusNoContent {
		t.Fatalf("bob: expected his own bucket, got %d", rec.Code)
	}
}

func TestTokenBucketFailsOpenWhenRedisIsDown(t *testing.T) {
	srv, cfg, rdb := newBucket(t, 1)
	mw := NewTokenBucket(cfg, rdb)
	srv.Close()

	for i := 0; i < 3; i++ {
		if rec, _ := serve(t, "", mw); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected pass-through while redis is down, got %d", i, rec.Code)
		}
	}
}
