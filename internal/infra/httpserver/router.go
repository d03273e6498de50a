package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appproxy "github.com/bryanwahyu/x402guard/internal/application/proxy"
	"github.com/bryanwahyu/x402guard/internal/domain/audit"
	"github.com/bryanwahyu/x402guard/internal/log"
	"github.com/bryanwahyu/x402guard/internal/middleware"
	"github.com/bryanwahyu/x402guard/internal/x402"
)

const maxRequestBody = 1 << 20

var (
	exposeHeaders = strings.Join(x402.ExposedHeaders, ", ")
	allowHeaders  = []string{"Content-Type", "X-Payment", "Payment-Signature"}
)

// Options wires the router's dependencies. Only Proxy is required.
type Options struct {
	Proxy       *appproxy.Service
	Logger      *zap.Logger
	Metrics     *middleware.Metrics
	RateLimiter *middleware.RateLimiter
	Checkers    map[string]middleware.HealthChecker
}

type Router struct {
	proxySvc *appproxy.Service
	metrics  *middleware.Metrics
	logger   *zap.Logger
}

func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = middleware.NewMetrics()
	}
	r := &Router{proxySvc: opts.Proxy, metrics: opts.Metrics, logger: opts.Logger}

	mux := chi.NewRouter()
	mux.Use(
		middleware.RequestID,
		middleware.Logging(opts.Logger),
		opts.Metrics.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins:     []string{"*"},
			AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:     allowHeaders,
			ExposedHeaders:     x402.ExposedHeaders,
			OptionsPassthrough: true,
			MaxAge:             300,
		}),
	)

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler(opts.Checkers))
	mux.Handle("/metrics", opts.Metrics.Handler())

	mux.Route("/api", func(rt chi.Router) {
		if opts.RateLimiter != nil {
			rt.Use(opts.RateLimiter.Middleware)
		}
		rt.Get("/tiers", r.wrap(r.handleTiers))
		rt.Post("/audit/{tier}", r.wrap(r.handleAudit))
		rt.Options("/audit/{tier}", r.handleAuditPreflight)
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var gw *appproxy.GatewayError
			var tooLarge *http.MaxBytesError
			switch {
			case errors.Is(err, audit.ErrInvalidTier):
				writeError(w, http.StatusBadRequest, "Invalid audit tier")
			case errors.Is(err, appproxy.ErrInvalidJSON):
				writeError(w, http.StatusBadRequest, err.Error())
			case errors.As(err, &tooLarge):
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			case errors.As(err, &gw):
				writeError(w, http.StatusBadGateway, gw.Error())
			default:
				log.FromContext(req.Context()).Error("handler error", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}
	}
}

// POST /api/audit/{tier}
// Body: {"skill_url": "..."} or {"skill_content": "..."}, relayed as-is.
func (r *Router) handleAudit(w http.ResponseWriter, req *http.Request) error {
	tier := chi.URLParam(req, "tier")
	w.Header().Set("Access-Control-Expose-Headers", exposeHeaders)

	// tier dicek dulu, sebelum body dibaca
	if _, err := audit.ParseTier(tier); err != nil {
		return err
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxRequestBody))
	if err != nil {
		return err
	}

	res, err := r.proxySvc.Forward(req.Context(), tier, body, req.Header)
	if err != nil {
		var gw *appproxy.GatewayError
		if errors.As(err, &gw) {
			r.metrics.ObserveUpstreamError()
		}
		return err
	}
	r.metrics.ObserveAudit(tier, res.StatusCode)

	for k, vs := range res.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.StatusCode)
	_, err = w.Write(res.Body)
	return err
}

// OPTIONS /api/audit/{tier}
func (r *Router) handleAuditPreflight(w http.ResponseWriter, req *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", strings.Join(allowHeaders, ", "))
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/tiers
func (r *Router) handleTiers(w http.ResponseWriter, req *http.Request) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(audit.Tiers)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
