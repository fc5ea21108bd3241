package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/xela07ax/higher-guardian/internal/audit"
	"github.com/xela07ax/higher-guardian/internal/console/handler"
	"github.com/xela07ax/higher-guardian/internal/console/server"
	"github.com/xela07ax/higher-guardian/internal/console/service"
	"github.com/xela07ax/higher-guardian/internal/engine"
	"github.com/xela07ax/higher-guardian/internal/ethics"
	"github.com/xela07ax/higher-guardian/internal/guardian"
	"github.com/xela07ax/higher-guardian/internal/infra"
	"github.com/xela07ax/higher-guardian/internal/infra/auth"
	"github.com/xela07ax/higher-guardian/internal/monitoring"
	"github.com/xela07ax/higher-guardian/internal/network"
	"github.com/xela07ax/higher-guardian/internal/repository/postgres"
	"github.com/xela07ax/higher-guardian/internal/risk"
	"github.com/xela07ax/higher-guardian/internal/transaction"
)

func main() {
	// 0. Конфиг и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	// SIGINT/SIGTERM отменяют его и останавливают слушателей
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 2. Аудит: Postgres, если задан, иначе в лог
	storage, closeStorage := openAuditStorage(appCtx, cfg, logger)
	defer closeStorage()

	sink := engine.NewReliableSink(storage, engine.SinkConfig{
		Name:        "audit-sink",
		MaxRequests: cfg.Engine.CBMaxRequests,
		Interval:    cfg.Engine.CBInterval,
		Timeout:     cfg.Engine.CBTimeout,
		Failures:    cfg.Engine.CBFailures,
		RateLimit:   cfg.Engine.SinkRateLimit,
		RateBurst:   cfg.Engine.SinkRateBurst,
		Attempts:    cfg.Engine.SinkAttempts,
		CallTimeout: cfg.Engine.SinkTimeout,
	}, metrics, logger)

	exporter := audit.NewExporter(sink, audit.Config{
		BufferSize:    cfg.Engine.AuditBufferSize,
		BatchSize:     cfg.Engine.AuditBatchSize,
		FlushInterval: cfg.Engine.AuditFlushInterval,
	}, logger)
	exporter.Start()
	metrics.TrackAuditBuffer(exporter.Pending)

	// 3. Core (Сборка ядра Guardian)
	sysMonitor := monitoring.NewSystemMonitor(cfg.Monitoring, metrics, logger)
	g := guardian.NewGuardian(
		risk.NewAnalyzer(cfg.Guardian.Risk, nil, logger),
		ethics.NewEngine(cfg.Ethics, logger),
		sysMonitor,
		exporter,
		metrics,
		logger,
		guardian.Config{
			HistoryCapacity: cfg.Guardian.HistoryCapacity,
			HistoryTrim:     cfg.Guardian.HistoryTrim,
			Boundaries:      cfg.Guardian.Boundaries,
		},
	)
	txMonitor := transaction.NewMonitor(cfg.Transaction, metrics, logger)
	netMonitor := network.NewMonitor(cfg.Network.Config, metrics, logger)

	// 4. Блок-лист: Redis (общий для инстансов) или только локально
	rdb := startBlocklist(appCtx, cfg, netMonitor, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	// 5. Data plane: HTTP + gRPC с общим пайплайном
	gateway := engine.NewGateway(g, txMonitor, netMonitor, sysMonitor, exporter, metrics, logger)
	tokens := engine.NewAgentTokens(cfg.Server.Tokens)
	if !tokens.Enabled() {
		logger.Warn("agent tokens are not configured, data plane is open")
	}

	dataSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      gateway.Handler(tokens),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(engine.UnaryAuthInterceptor(tokens)))
	engine.NewGRPCGatewayServer(gateway).Register(grpcSrv)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: metricsMux}

	// 6. Console
	consoleSrv := newConsoleServer(cfg, g, txMonitor, netMonitor, sysMonitor, rdb, logger)

	servers := []*http.Server{dataSrv, metricsSrv}
	if consoleSrv != nil {
		servers = append(servers, consoleSrv)
	}
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("http server started", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("listen failed", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}(srv)
	}

	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			logger.Fatal("failed to listen gRPC", zap.Error(err))
		}
		logger.Info("gRPC server started", zap.String("addr", lis.Addr().String()))
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Fatal("failed to serve gRPC", zap.Error(err))
		}
	}()

	// 7. Graceful Shutdown
	<-appCtx.Done()
	logger.Info("guardian stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
	grpcSrv.GracefulStop()

	// Остаток буфера аудита уходит в хранилище до закрытия соединений
	exporter.Stop()
	logger.Info("guardian exited properly")
}

func openAuditStorage(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (audit.StorageInterface, func()) {
	if cfg.Database.URL == "" {
		logger.Warn("database url is empty, audit goes to log")
		return audit.NewLogSink(logger), func() {}
	}

	repo, err := postgres.NewAuditRepo(cfg.Database.URL, postgres.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		logger.Fatal("audit db", zap.Error(err))
	}

	// Проверяем соединение с таймаутом
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	if err := repo.EnsureSchema(pingCtx); err != nil {
		logger.Fatal("audit schema", zap.Error(err))
	}

	return repo, func() {
		if err := repo.Close(); err != nil {
			logger.Warn("audit db close", zap.Error(err))
		}
	}
}

func startBlocklist(ctx context.Context, cfg *infra.Config, netMonitor *network.Monitor, logger *zap.Logger) *redis.Client {
	if cfg.Redis.Addr == "" {
		logger.Warn("redis addr is empty, ip blocklist is local to this instance")
		for _, raw := range cfg.Network.BlockedIPs {
			ip, err := netip.ParseAddr(raw)
			if err != nil {
				logger.Warn("skipping malformed blocked ip", zap.String("ip", raw))
				continue
			}
			netMonitor.BlockIP(ip)
		}
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	blocklist := engine.NewBlocklistSync(rdb, netMonitor, cfg.Network.BlockedIPs, logger)
	if err := blocklist.Init(ctx); err != nil {
		// Слушатель перечитает состояние при подключении
		logger.Warn("blocklist init failed", zap.Error(err))
	}
	go blocklist.StartListener(ctx)
	return rdb
}

func newConsoleServer(
	cfg *infra.Config,
	g *guardian.Guardian,
	txMonitor *transaction.Monitor,
	netMonitor *network.Monitor,
	sysMonitor *monitoring.SystemMonitor,
	rdb *redis.Client,
	logger *zap.Logger,
) *http.Server {
	pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Warn("console disabled: no public key", zap.Error(err))
		return nil
	}
	priv, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Warn("console disabled: no private key", zap.Error(err))
		return nil
	}
	if len(cfg.Operators) == 0 {
		logger.Warn("no console operators configured")
	}

	// Инициализация слоев (Dependency Injection)
	guardianSvc := service.NewGuardianService(g, txMonitor, logger)
	authSvc := service.NewAuthService(service.NewOperatorRegistry(cfg.Operators), priv, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	console := server.NewConsoleServer(
		logger,
		auth.NewBaseValidator(pub, cfg.Auth.Issuer),
		handler.NewAuthHandler(authSvc),
		handler.NewAgentHandler(guardianSvc),
		handler.NewPolicyHandler(guardianSvc),
		handler.NewDecisionHandler(guardianSvc),
		handler.NewDashboardHandler(sysMonitor),
		handler.NewNetworkHandler(service.NewNetworkService(rdb, netMonitor, logger), logger),
	)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Console.Host, cfg.Console.Port),
		Handler:      console,
		ReadTimeout:  cfg.Console.ReadTimeout,
		WriteTimeout: cfg.Console.WriteTimeout,
	}
}
