package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/higher-guardian/internal/console/handler"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"github.com/xela07ax/higher-guardian/internal/infra/auth"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Интерфейс для проверки токенов (RS256)
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	authHandler     *handler.AuthHandler      // /auth/token
	agentHandler    *handler.AgentHandler     // /v1/agents, /v1/transactions
	policyHandler   *handler.PolicyHandler    // /v1/boundaries
	decisionHandler *handler.DecisionHandler  // /v1/decisions (HITL override)
	dashHandler     *handler.DashboardHandler // /v1/report, /v1/health, /v1/activities
	networkHandler  *handler.NetworkHandler   // /v1/network
}

// NewConsoleServer инициализирует сервер админки со всеми зависимостями
func NewConsoleServer(
	logger *zap.Logger,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	agentH *handler.AgentHandler,
	policyH *handler.PolicyHandler,
	decisionH *handler.DecisionHandler,
	dashH *handler.DashboardHandler,
	networkH *handler.NetworkHandler,
) *ConsoleServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ConsoleServer{
		router:          chi.NewRouter(),
		logger:          logger.Named("console-api"),
		authValidator:   validator,
		authHandler:     authH,
		agentHandler:    agentH,
		policyHandler:   policyH,
		decisionHandler: decisionH,
		dashHandler:     dashH,
		networkHandler:  networkH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для балансировщика
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		read := auth.RequireScope(domain.ScopeRead)
		admin := auth.RequireScope(domain.ScopeAdmin)

		// Отчеты и здоровье
		r.With(read).Get("/v1/report", s.dashHandler.Report)
		r.With(read).Get("/v1/health", s.dashHandler.Health)
		r.With(read).Get("/v1/activities", s.dashHandler.Activities)
		r.With(admin).Post("/v1/activities", s.dashHandler.LogActivity)

		// Реестр агентов и их лимиты
		r.Route("/v1/agents", func(r chi.Router) {
			r.With(read).Get("/", s.agentHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.With(read).Get("/", s.agentHandler.Get)
				r.With(admin).Put("/", s.agentHandler.Upsert)
				r.With(read).Get("/limits", s.agentHandler.GetLimits)
				r.With(admin).Put("/limits", s.agentHandler.SetLimits)
			})
		})
		r.With(admin).Post("/v1/transactions/reset", s.agentHandler.ResetSpending)

		// Этические границы
		r.With(read).Get("/v1/boundaries", s.policyHandler.Boundaries)
		r.With(admin).Put("/v1/boundaries", s.policyHandler.ReplaceBoundaries)

		// История решений и Human-in-the-loop
		r.With(read).Get("/v1/decisions", s.decisionHandler.List)
		r.With(admin).Post("/v1/decisions/{id}/override", s.decisionHandler.Override)

		// Сеть
		r.Route("/v1/network", func(r chi.Router) {
			r.With(read).Get("/blocked", s.networkHandler.BlockedIPs)
			r.With(admin).Post("/blocked/{ip}", s.networkHandler.Block)
			r.With(admin).Delete("/blocked/{ip}", s.networkHandler.Unblock)
			r.With(read).Get("/rules", s.networkHandler.Rules)
			r.With(admin).Post("/rules", s.networkHandler.AddRule)
			r.With(read).Get("/policy", s.networkHandler.Policy)
			r.With(admin).Put("/policy", s.networkHandler.ReplacePolicy)
			r.With(read).Get("/tunnels", s.networkHandler.Tunnels)
			r.With(read).Get("/suspicious", s.networkHandler.Suspicious)
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
