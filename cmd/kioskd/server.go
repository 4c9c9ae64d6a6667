package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/api/handlers"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/engine"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/cache"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/database"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/metrics"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/reporter"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/server"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/telemetry"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/store"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// 数据库连接数采样间隔
const dbStatsInterval = 15 * time.Second

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 kioskd 的主服务器
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 组件
	registry     *prometheus.Registry
	collector    *metrics.Collector
	telemetry    *telemetry.Providers
	db           *database.PoolManager
	store        *store.Store
	cache        *cache.Manager
	resolver     voice.AnswerResolver
	invalidator  handlers.Invalidator
	reporter     *reporter.Reporter
	orchestrator *voice.Orchestrator
	watcher      *config.VoiceWatcher

	// 后台任务生命周期
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger) *Server {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		bgCtx:      bgCtx,
		bgCancel:   bgCancel,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 初始化全部组件并启动 HTTP 与 Metrics 服务器
//
// 数据库不可用时直接失败：没有应答库终端无法作答。Redis、上报与遥测
// 失败只降级。
func (s *Server) Start(ctx context.Context) error {
	// 1. 指标与遥测
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollector("kiosk", s.registry, s.logger)

	providers, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.telemetry = providers

	// 2. 应答库
	if err := s.initStore(ctx); err != nil {
		return fmt.Errorf("failed to init response store: %w", err)
	}

	// 3. 上报
	s.initReporter()

	// 4. 编排器
	s.initOrchestrator(ctx)

	// 5. 配置热更新（只作用于 voice 段）
	if err := s.initWatcher(); err != nil {
		s.logger.Warn("config watcher disabled", zap.Error(err))
	}

	// 6. HTTP 与 Metrics 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	go s.pollDBStats()

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("state", string(s.orchestrator.State())),
		zap.Bool("hot_reload_enabled", s.watcher != nil),
	)
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initStore(ctx context.Context) error {
	db, err := database.Open(s.cfg.Database, s.logger)
	if err != nil {
		return err
	}
	s.db = db

	if s.cfg.Database.AutoMigrate {
		if err := store.AutoMigrate(db.DB()); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	st, err := store.Open(ctx, db,
		store.WithLogger(s.logger),
		store.WithLookupObserver(s.collector),
	)
	if err != nil {
		return err
	}
	s.store = st
	s.resolver = st

	if !s.cfg.Redis.Enabled {
		return nil
	}
	mgr, err := cache.NewManager(cache.FromRedisConfig(s.cfg.Redis), s.logger)
	if err != nil {
		s.logger.Warn("Redis not available, answer cache disabled", zap.Error(err))
		return nil
	}
	s.cache = mgr
	cached := store.NewCachedResolver(st, mgr, s.cfg.Redis.AnswerTTL, s.logger).WithObserver(s.collector)
	s.resolver = cached
	s.invalidator = cached
	return nil
}

func (s *Server) initReporter() {
	if !s.cfg.Reporter.Enabled {
		return
	}
	r, err := reporter.New(s.cfg.Reporter, s.logger, reporter.WithObserver(s.collector))
	if err != nil {
		s.logger.Warn("telemetry reporter disabled", zap.Error(err))
		return
	}
	s.reporter = r
}

// capabilities 由引擎配置组装编排器的外部能力
func (s *Server) capabilities() voice.Capabilities {
	engines := s.cfg.Engines
	opts := []engine.Option{engine.WithLogger(s.logger)}

	stt := engine.NewHTTPTranscriber(engines.STT, s.cfg.Voice.Locale, opts...)
	tts := engine.NewHTTPSynthesizer(engines.TTS, opts...)
	llm := engine.NewLLMClient(engines.LLM, opts...)
	s.collector.ObserveCircuit("stt", func() string { return stt.CircuitState().String() })
	s.collector.ObserveCircuit("tts", func() string { return tts.CircuitState().String() })
	s.collector.ObserveCircuit("llm", func() string { return llm.CircuitState().String() })

	return voice.Capabilities{
		Transcriber: stt,
		Synthesizer: tts,
		LLM:         llm,
		VAD:         engine.NewEnergyGate(engine.CommandSource(engines.VAD.CaptureCommand, s.logger), engines.VAD, s.logger),
		Output:      engine.NewPCMOutput(engine.CommandSink(engines.VAD.PlaybackCommand, s.logger), s.logger),
	}
}

func (s *Server) initOrchestrator(ctx context.Context) {
	opts := []voice.Option{
		voice.WithLogger(s.logger),
		voice.WithRecorder(s.collector),
		voice.WithTracer(s.telemetry.Tracer("kioskd/voice")),
		voice.WithParallelAnswers(s.store),
		voice.WithSeeder(s.store),
	}
	if s.reporter != nil {
		opts = append(opts, voice.WithReporter(s.reporter))
	}

	s.orchestrator = voice.NewOrchestrator(s.capabilities(), s.resolver, s.cfg.Voice, opts...)

	// 初始化失败只降级，编排器会自愈回 Idle
	if err := s.orchestrator.Initialize(ctx); err != nil {
		s.logger.Error("orchestrator initialization failed", zap.Error(err))
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.Warn("answer cache invalidation failed", zap.Error(err))
		}
	}
	if err := s.telemetry.ObserveState("kioskd/voice", "kiosk.voice.state", func() string {
		return string(s.orchestrator.State())
	}); err != nil {
		s.logger.Warn("voice state gauge not registered", zap.Error(err))
	}
}

func (s *Server) initWatcher() error {
	if s.configPath == "" {
		return nil
	}
	w, err := config.NewVoiceWatcher(s.configPath, s.cfg.Voice, config.WithWatcherLogger(s.logger))
	if err != nil {
		return err
	}
	w.OnChange(func(change config.VoiceChange) {
		s.logger.Info("Voice settings reloaded",
			zap.String("locale", change.New.Locale),
			zap.Int("speaker_id", change.New.SpeakerID),
			zap.Float64("speed", change.New.Speed),
		)
		s.orchestrator.UpdateVoiceSettings(change.New)
	})
	if err := w.Start(s.bgCtx); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// locale 返回当前生效的应答语言
func (s *Server) locale() string {
	if s.watcher != nil {
		return s.watcher.Current().Locale
	}
	return s.cfg.Voice.Locale
}

// pollDBStats 周期性采样连接池状态
func (s *Server) pollDBStats() {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		stats := s.db.Stats()
		s.collector.RecordDBConnections(s.cfg.Database.Driver, stats.OpenConnections, stats.Idle)

		select {
		case <-s.bgCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 注册全部端点，返回未包装中间件的 mux
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(s.logger)
	health.Register(s.db)
	health.Register(handlers.VoiceReadyCheck(s.orchestrator.State))
	health.RegisterOptional(handlers.EnginesCheck(s.orchestrator.Availability))
	if s.cache != nil {
		health.RegisterOptional(s.cache)
	}
	mux.HandleFunc("GET /health", health.HandleLive)
	mux.HandleFunc("GET /healthz", health.HandleLive)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	kiosk := handlers.NewKioskHandler(s.orchestrator, s.resolver, s.locale, s.logger)
	mux.HandleFunc("POST /v1/kiosk/events", kiosk.HandleEvent)
	mux.HandleFunc("POST /v1/kiosk/stop", kiosk.HandleStop)
	mux.HandleFunc("POST /v1/kiosk/interrupt", kiosk.HandleInterrupt)
	mux.HandleFunc("GET /v1/kiosk/state", kiosk.HandleState)
	mux.HandleFunc("GET /v1/kiosk/logs", kiosk.HandleLogs)
	mux.HandleFunc("GET /v1/kiosk/turn", kiosk.HandleLastTurn)
	mux.HandleFunc("POST /v1/kiosk/resolve", kiosk.HandleResolve)

	stream := handlers.NewStreamHandler(s.orchestrator, originHosts(s.cfg.Server.CORSAllowedOrigins), s.logger)
	mux.HandleFunc("GET /v1/kiosk/stream", stream.HandleStream)

	// 管理端点只在配置了 JWT 密钥时开放
	if s.cfg.Server.JWTSecret != "" {
		admin := handlers.NewAdminHandler(s.store, s.invalidator, s.logger)
		jwtAuth := JWTAuth(s.cfg.Server.JWTSecret, s.logger)
		mux.Handle("POST /v1/admin/seed", jwtAuth(http.HandlerFunc(admin.HandleSeed)))
		mux.Handle("GET /v1/admin/intents", jwtAuth(http.HandlerFunc(admin.HandleIntents)))
		s.logger.Info("Admin API registered with JWT authentication")
	}
	return mux
}

// startHTTPServer 启动控制面 HTTP 服务器
func (s *Server) startHTTPServer() error {
	handler := Chain(s.routes(),
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(s.bgCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, "/v1/kiosk/", s.cfg.Server.AllowQueryAPIKey, s.logger),
	)

	s.httpManager = server.NewManager(handler, server.FromServerConfig(s.cfg.Server, s.cfg.Server.HTTPPort), s.logger)
	s.registerShutdownHooks()

	if err := s.httpManager.Start(); err != nil {
		return err
	}
	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// registerShutdownHooks 钩子逆序执行：先停后台任务和编排器，最后关数据库与遥测
func (s *Server) registerShutdownHooks() {
	m := s.httpManager
	m.OnShutdown("telemetry", func(ctx context.Context) error {
		return s.telemetry.Shutdown(ctx)
	})
	m.OnShutdown("database", func(context.Context) error {
		return s.db.Close()
	})
	if s.cache != nil {
		m.OnShutdown("cache", func(context.Context) error {
			return s.cache.Close()
		})
	}
	if s.reporter != nil {
		m.OnShutdown("reporter", s.reporter.Close)
	}
	m.OnShutdown("orchestrator", s.orchestrator.Close)
	m.OnShutdown("metrics_server", func(ctx context.Context) error {
		if s.metricsManager == nil {
			return nil
		}
		return s.metricsManager.Shutdown(ctx)
	})
	m.OnShutdown("background", func(context.Context) error {
		s.bgCancel()
		if s.watcher != nil {
			return s.watcher.Stop()
		}
		return nil
	})
}

// originHosts 把 CORS 来源（https://ui.local:3000）转为 WebSocket 的 host 模式
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			hosts = append(hosts, o)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	s.metricsManager = server.NewManager(mux, server.FromServerConfig(s.cfg.Server, s.cfg.Server.MetricsPort), s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭全部组件
func (s *Server) WaitForShutdown(ctx context.Context) error {
	return s.httpManager.WaitForShutdown(ctx)
}
