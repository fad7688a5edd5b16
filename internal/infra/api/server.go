package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"health-insurance-portal/internal/config"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
	"health-insurance-portal/internal/usecase"
)

// PackageLister is the catalog read the API needs.
type PackageLister interface {
	List(ctx context.Context) ([]*model.SubscriptionPackage, error)
}

// TransactionLister is the ledger read side used by dashboards.
type TransactionLister interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Transaction, error)
	List(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, error)
	CountByStatus(ctx context.Context) (map[model.TransactionStatus]int, error)
}

// Limiter is a shared fixed-window counter (redis in production).
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Deps struct {
	Reconcile     usecase.ReconcileUseCase
	Quotes        usecase.QuoteUseCase
	Subscriptions usecase.SubscriptionUseCase
	Packages      PackageLister
	Transactions  TransactionLister
	Auth          *AuthManager
	// CheckoutLimiter is optional; nil disables the per-user checkout limit.
	CheckoutLimiter Limiter
}

// Server exposes gateway callbacks, the browser return flow and the JSON API.
type Server struct {
	deps Deps
	http config.HTTPConfig
	pay  config.PaymentConfig
	log  *zerolog.Logger
}

func NewServer(deps Deps, httpCfg config.HTTPConfig, payCfg config.PaymentConfig, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{deps: deps, http: httpCfg, pay: payCfg, log: &l}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))
	if s.http.RequestTimeout > 0 {
		r.Use(Timeout(s.http.RequestTimeout))
	}
	if len(s.http.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.http.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", traceHeader},
			ExposedHeaders:   []string{traceHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Gateway callbacks and the browser return flow are unauthenticated.
	r.Group(func(r chi.Router) {
		if s.http.PublicRateLimit > 0 {
			r.Use(RateLimitIP(rate.Limit(s.http.PublicRateLimit), s.http.PublicBurst))
		}
		r.Post("/webhooks/{gateway}", s.handleWebhook)
		r.Get("/payments/verify", s.handleVerify)
		r.Get("/payments/success", s.handleResultPage(true))
		r.Get("/payments/failed", s.handleResultPage(false))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/packages", s.listPackages)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(s.deps.Auth, s.log))
			r.Post("/quotes", s.createQuote)
			r.Post("/subscriptions", s.selectSubscription)
			r.Post("/checkout", s.checkout)
			r.Get("/me/transactions", s.myTransactions)
			r.Get("/me/quotes", s.myQuotes)
			r.Get("/me/subscriptions", s.mySubscriptions)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(RoleAdmin))
				r.Get("/admin/transactions", s.adminTransactions)
				r.Get("/admin/stats", s.adminStats)
			})
		})
	})
	return r
}

// HTTPServer wraps Router in a net/http server with the configured timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.http.Addr,
		Handler:           s.Router(),
		ReadTimeout:       s.http.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.http.WriteTimeout,
	}
}
