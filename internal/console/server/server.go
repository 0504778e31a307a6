package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/shuma-dashboard/internal/console/handler"
	"github.com/xela07ax/shuma-dashboard/internal/console/service"
	"github.com/xela07ax/shuma-dashboard/internal/infra/auth"
	"go.uber.org/zap"
)

// ConsoleServer: HTTP-адаптер командного интерфейса рантайма для UI.
type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// nil = адаптер открыт (слушает только localhost)
	authValidator auth.TokenValidator
	gatherer      prometheus.Gatherer

	dashHandler    *handler.DashboardHandler // /api/v1/state, tabs, refresh
	sessionHandler *handler.SessionHandler   // /api/v1/session
	configHandler  *handler.ConfigHandler    // /api/v1/config, drafts
	banHandler     *handler.BanHandler       // /api/v1/bans
	journalHandler *handler.JournalHandler   // /api/v1/journal
}

type Options struct {
	// AdapterToken: общий секрет UI и адаптера; пусто отключает проверку.
	AdapterToken string
	// Gatherer для /metrics; nil отключает эндпоинт.
	Gatherer prometheus.Gatherer
	Journal  *service.JournalService
}

// NewConsoleServer инициализирует сервер адаптера со всеми обработчиками
func NewConsoleServer(rt handler.Runtime, opts Options, logger *zap.Logger) *ConsoleServer {
	logger = logger.Named("console-api")
	journalSvc := opts.Journal
	if journalSvc == nil {
		journalSvc = service.NewJournalService(nil)
	}

	s := &ConsoleServer{
		router:         chi.NewRouter(),
		logger:         logger,
		gatherer:       opts.Gatherer,
		dashHandler:    handler.NewDashboardHandler(rt, logger),
		sessionHandler: handler.NewSessionHandler(rt, logger),
		configHandler:  handler.NewConfigHandler(rt, logger),
		banHandler:     handler.NewBanHandler(rt, logger),
		journalHandler: handler.NewJournalHandler(journalSvc, logger),
	}
	if opts.AdapterToken != "" {
		s.authValidator = auth.StaticToken(opts.AdapterToken)
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TracingMiddleware)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		if s.gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		}
	})

	// --- 3. КОМАНДНЫЙ ИНТЕРФЕЙС (токен адаптера, если задан) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/state", s.dashHandler.GetState)
			r.Get("/telemetry", s.dashHandler.GetTelemetry)
			r.Post("/tabs/{tab}", s.dashHandler.ApplyTab)
			r.Post("/hash", s.dashHandler.SetHash)
			r.Post("/refresh/{tab}", s.dashHandler.Refresh)
			r.Post("/visibility", s.dashHandler.SetVisibility)

			r.Route("/session", func(r chi.Router) {
				r.Post("/restore", s.sessionHandler.Restore)
				r.Post("/logout", s.sessionHandler.Logout)
			})

			r.Post("/config", s.configHandler.Save)
			r.Post("/drafts/{section}/dirty", s.configHandler.Dirty)

			r.Route("/bans", func(r chi.Router) {
				r.Post("/", s.banHandler.Ban)
				r.Delete("/{ip}", s.banHandler.Unban)
			})

			r.Get("/journal", s.journalHandler.GetEntries)
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
