package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"darts-lite/apps/server/internal/gateway"
	"darts-lite/apps/server/internal/ledger"
	"darts-lite/apps/server/internal/lobby"
)

type Deps struct {
	Lobby   *lobby.Lobby
	Ledger  ledger.Service
	Gateway *gateway.Gateway
	Logger  *zap.Logger
}

// NewRouter wires the REST API under /api, the websocket endpoint and /health.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if d.Gateway != nil {
		d.Gateway.Routes(r)
	}

	boards := NewHandler(d.Lobby, logger)
	history := ledger.NewHTTPHandler(d.Ledger, logger)
	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(15 * time.Second))
		boards.Routes(api)
		history.Routes(api)
	})
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
