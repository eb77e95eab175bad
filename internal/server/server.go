package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/quesgenie/internal/api"
	"github.com/victornm/quesgenie/internal/auth"
	"github.com/victornm/quesgenie/internal/cache"
	"github.com/victornm/quesgenie/internal/event"
	"github.com/victornm/quesgenie/internal/flow"
	"github.com/victornm/quesgenie/internal/generator"
	"github.com/victornm/quesgenie/internal/notify"
	"github.com/victornm/quesgenie/internal/session"
	"github.com/victornm/quesgenie/internal/store"
	"github.com/victornm/quesgenie/internal/telemetry"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	GeneratorStatic = "static"
	GeneratorHTTP   = "http"
)

type Config struct {
	HTTP struct {
		Port int32
		// AllowedOrigins may call the API from a browser, besides the API's
		// own origin.
		AllowedOrigins []string
	}

	GRPC struct {
		Port int32
	}

	Log struct {
		Level  string
		Format string
	}

	Redis struct {
		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Store struct {
		Driver string
	}

	Postgres struct {
		Addr        string
		User        string
		Pass        string
		Name        string
		AutoMigrate bool
	}

	Generator struct {
		Mode    string
		BaseURL string
		Timeout time.Duration
		// Delay slows down the static generator.
		Delay time.Duration
	}

	Auth struct {
		JWTSecret    string
		TokenTTL     time.Duration
		SecureCookie bool
		BcryptCost   int
	}

	Flow struct {
		PageTTL time.Duration
	}

	EventBus struct {
		PoolSize int
		Timeout  time.Duration
	}
}

func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Redis.Pubsub.Prefix = "quesgenie"
	c.Store.Driver = StoreMemory
	c.Postgres.AutoMigrate = true
	c.Generator.Mode = GeneratorStatic
	c.Generator.Timeout = 120 * time.Second
	c.Auth.TokenTTL = 24 * time.Hour
	c.Flow.PageTTL = 30 * time.Minute
	c.EventBus.PoolSize = 1000
	c.EventBus.Timeout = 30 * time.Second
	return c
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.Addr == "" || c.Postgres.Name == "" {
			return fmt.Errorf("postgres addr and name are required")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Generator.Mode {
	case GeneratorStatic:
	case GeneratorHTTP:
		if c.Generator.BaseURL == "" {
			return fmt.Errorf("generator base url is required")
		}
	default:
		return fmt.Errorf("unknown generator mode %q", c.Generator.Mode)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt secret is required")
	}

	return nil
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	store store.Gateway

	service struct {
		session *session.Service
		auth    *auth.Service
		flow    *flow.Controller
	}

	http *http.Server
	grpc *grpc.Server
	hub  *notify.Hub

	ctx  context.Context
	stop context.CancelFunc
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}
	s.ctx, s.stop = context.WithCancel(context.Background())

	if err := telemetry.SetupLogger(os.Stdout, c.Log.Level, c.Log.Format); err != nil {
		return nil, fmt.Errorf("server: init logger: %w", err)
	}

	s.eb = event.NewBus(event.BusConfig{
		PoolSize: c.EventBus.PoolSize,
		Timeout:  c.EventBus.Timeout,
	})

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	return nil
}

// initRedis connects the pub/sub client. Without addresses change
// notifications stay in-process.
func (s *Server) initRedis() error {
	rc := s.c.Redis.Pubsub
	if len(rc.Addrs) == 0 {
		slog.Warn("server: no redis configured, change notifications are not published")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    rc.Addrs,
		Password: rc.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initStore() error {
	if s.c.Store.Driver != StorePostgres {
		s.store = store.NewMemory()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pc := s.c.Postgres
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return err
	}

	pg := store.NewPostgres(store.PostgresConfig{DB: db})
	if pc.AutoMigrate {
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	s.infra.postgres = db
	s.store = pg
	return nil
}

func (s *Server) initService() {
	var g generator.Generator = generator.Static{Delay: s.c.Generator.Delay}
	if s.c.Generator.Mode == GeneratorHTTP {
		g = generator.NewClient(generator.Config{
			BaseURL: s.c.Generator.BaseURL,
			Timeout: s.c.Generator.Timeout,
		})
	}

	s.service.session = session.NewService(session.Config{
		Store:     s.store,
		Cache:     cache.New(cache.Config{Loader: s.store}),
		Generator: telemetry.MonitorGenerator(g),
		EventBus:  s.eb,
	})

	s.service.auth = auth.NewService(auth.Config{
		Users:      s.store,
		Secret:     s.c.Auth.JWTSecret,
		TokenTTL:   s.c.Auth.TokenTTL,
		BcryptCost: s.c.Auth.BcryptCost,
	})

	s.service.flow = flow.NewController(flow.Config{
		Sessions: s.service.session,
		PageTTL:  s.c.Flow.PageTTL,
	})
}

func (s *Server) initAPI() {
	gin.SetMode(gin.ReleaseMode)

	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.HTTPMetrics(), telemetry.HTTPLogger())
	if len(s.c.HTTP.AllowedOrigins) > 0 {
		e.Use(cors.New(cors.Config{
			AllowOrigins:     s.c.HTTP.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	s.hub = notify.NewHub(notify.Config{
		EventBus:    s.eb,
		CheckOrigin: s.checkOrigin,
	})

	cfg := api.Config{
		Router:       e,
		GRPC:         s.grpc,
		EventBus:     s.eb,
		Session:      s.service.session,
		Flow:         s.service.flow,
		Auth:         s.service.auth,
		Notify:       s.hub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
		SecureCookie: s.c.Auth.SecureCookie,
	}
	if s.infra.redis != nil {
		cfg.Redis = s.infra.redis
	}
	api.New(cfg)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// checkOrigin accepts WebSocket upgrades from the API's own host and from the
// allowed origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}

	return slices.Contains(s.c.HTTP.AllowedOrigins, origin)
}

// Handler serves the HTTP API.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Start() {
	ctx := s.ctx

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		return s.service.flow.Run(ctx)
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.stop()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}
	s.hub.Close()

	s.eb.Stop()

	if s.infra.redis != nil {
		if err := s.infra.redis.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
