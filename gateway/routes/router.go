package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"creditguild/core"
	"creditguild/gateway/middleware"
)

// Config wires the HTTP surface to a protocol instance.
type Config struct {
	Protocol      *core.Protocol
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
	// Clock supplies the block time passed to time-dependent operations.
	Clock func() time.Time
}

type api struct {
	protocol *core.Protocol
	logger   *slog.Logger
	clock    func() time.Time
}

func (a *api) now() uint64 {
	return uint64(a.clock().Unix())
}

// New builds the router. Reads are public; every state-changing route
// requires a bearer token whose subject becomes the caller.
func New(cfg Config) (http.Handler, error) {
	if cfg.Protocol == nil {
		return nil, errors.New("routes: protocol is required")
	}
	if cfg.Authenticator == nil {
		return nil, errors.New("routes: authenticator is required")
	}
	a := &api{protocol: cfg.Protocol, logger: cfg.Logger, clock: cfg.Clock}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.clock == nil {
		a.clock = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestIDs)
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !a.protocol.IsInitialised() {
			http.Error(w, "genesis not applied", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(pub chi.Router) {
			pub.Use(middleware.Observe("query", a.logger))
			pub.Use(cfg.RateLimiter.Middleware("query"))
			a.mountQueries(pub)
		})
		v1.Group(func(priv chi.Router) {
			priv.Use(middleware.Observe("tx", a.logger))
			priv.Use(cfg.Authenticator.Middleware)
			priv.Use(cfg.RateLimiter.Middleware("tx"))
			a.mountLending(priv)
			a.mountAuctions(priv)
			a.mountProfit(priv)
			a.mountAdmin(priv)
		})
	})
	return r, nil
}
