package api

import (
	"context"
	"net/http"

	"github.com/kuitang/notewise/internal/auth"
	"github.com/kuitang/notewise/internal/notes"
	"github.com/kuitang/notewise/internal/obs"
	"github.com/kuitang/notewise/internal/ratelimit"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Notes      *notes.Service
	Users      *auth.UserService
	Middleware *auth.Middleware
	Limiter    *ratelimit.RateLimiter
	Metrics    *obs.Metrics // optional
	Store      Pinger       // optional, used by /healthz
}

// NewRouter wires every route and the middleware chain:
// request context, access log, metrics, then the mux. Authenticated routes are
// additionally wrapped in auth and the per-user rate limiter.
func NewRouter(d Deps) http.Handler {
	limit := ratelimit.RateLimitMiddleware(d.Limiter, func(r *http.Request) string {
		userID, _ := auth.UserIDFromContext(r.Context())
		return userID
	})
	protect := func(next http.Handler) http.Handler {
		return d.Middleware.RequireAuth(limit(next))
	}

	mux := http.NewServeMux()
	auth.NewHandler(d.Users).RegisterRoutes(mux, protect)
	NewHandler(d.Notes).RegisterRoutes(mux, protect)
	mux.HandleFunc("GET /healthz", healthz(d.Store))
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	var handler http.Handler = mux
	if d.Metrics != nil {
		handler = d.Metrics.Middleware(handler)
	}
	handler = obs.AccessLogMiddleware("api", handler)
	return obs.RequestContextMiddleware(handler)
}

func healthz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			if err := store.Ping(r.Context()); err != nil {
				obs.From(r.Context()).Error("healthz_store_unreachable", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
