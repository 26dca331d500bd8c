// Package apitest runs the full notewise HTTP stack on an httptest server
// backed by an in-memory database.
package apitest

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kuitang/notewise/internal/api"
	"github.com/kuitang/notewise/internal/auth"
	"github.com/kuitang/notewise/internal/db"
	"github.com/kuitang/notewise/internal/notes"
	"github.com/kuitang/notewise/internal/obs"
	"github.com/kuitang/notewise/internal/ratelimit"
	"github.com/kuitang/notewise/internal/testdb"
)

// Server is a running API server plus handles on its internals.
type Server struct {
	URL     string
	DB      *db.DB
	Notes   *notes.Service
	Users   *auth.UserService
	Tokens  *auth.Tokens
	Metrics *obs.Metrics
}

// Options tweak the server under test.
type Options struct {
	RateLimit ratelimit.Config
}

// New starts a server with a generous rate limit.
func New(t testing.TB) *Server {
	return NewWithOptions(t, Options{})
}

// NewWithOptions starts a server. Everything is torn down on test cleanup.
func NewWithOptions(t testing.TB, opts Options) *Server {
	t.Helper()

	database := testdb.MustNew(t)
	tokens, err := auth.NewTokens("https://notewise.test", bytes.Repeat([]byte{0x11}, 32), time.Hour)
	if err != nil {
		t.Fatalf("apitest: tokens: %v", err)
	}

	limitCfg := opts.RateLimit
	if limitCfg.RPS == 0 {
		limitCfg = ratelimit.Config{RPS: 1000, Burst: 1000, CleanupInterval: time.Hour}
	}
	limiter := ratelimit.NewRateLimiter(limitCfg)
	t.Cleanup(limiter.Stop)

	notesSvc := notes.NewService(database.Notes())
	users := auth.NewUserService(database.Users(), auth.FakeInsecureHasher{}, tokens)
	metrics := obs.NewMetrics(prometheus.NewRegistry())

	handler := api.NewRouter(api.Deps{
		Notes:      notesSvc,
		Users:      users,
		Middleware: auth.NewMiddleware(tokens, "notewise"),
		Limiter:    limiter,
		Metrics:    metrics,
		Store:      database,
	})
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return &Server{
		URL:     ts.URL,
		DB:      database,
		Notes:   notesSvc,
		Users:   users,
		Tokens:  tokens,
		Metrics: metrics,
	}
}

// Token issues an access token for userID without creating an account.
func (s *Server) Token(t testing.TB, userID string) string {
	t.Helper()
	token, _, err := s.Tokens.Issue(userID)
	if err != nil {
		t.Fatalf("apitest: issue token: %v", err)
	}
	return token
}
