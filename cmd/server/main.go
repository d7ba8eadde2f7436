package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/premierpass/premier-pass/internal/clock"
	"github.com/premierpass/premier-pass/internal/config"
	"github.com/premierpass/premier-pass/internal/database"
	"github.com/premierpass/premier-pass/internal/handler"
	"github.com/premierpass/premier-pass/internal/middleware"
	"github.com/premierpass/premier-pass/internal/pass"
	"github.com/premierpass/premier-pass/internal/queue"
	"github.com/premierpass/premier-pass/internal/repository"
	"github.com/premierpass/premier-pass/internal/router"
	"github.com/premierpass/premier-pass/internal/scheduler"
	"github.com/premierpass/premier-pass/internal/service"
)

// recordStore is what both store drivers provide.
type recordStore interface {
	pass.Store
	handler.UserStore
	handler.EventStore
	handler.LogStore
	handler.Pinger
}

func openStore(ctx context.Context, cfg config.Config) (recordStore, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Printf("store: using in-memory driver; data is lost on exit")
		return repository.NewMemoryStore(), func() {}, nil
	}
	db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		return nil, nil, err
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	return repository.NewSQLStore(db), func() { _ = db.Close() }, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load() // Load environment config

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid SCHOOL_TZ %q: %v", cfg.SchoolTZ, err)
	}
	policies, err := pass.ParsePolicies(cfg.PassPolicies, pass.DefaultPolicies())
	if err != nil {
		log.Fatalf("invalid PASS_POLICIES: %v", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	if err := handler.EnsureAdmin(ctx, store, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	var notifier pass.Notifier
	var publisher *service.Publisher
	if cfg.EventsEnabled {
		publisher = service.NewPublisher(cfg.RabbitURL)
		notifier = publisher
		go func() {
			if err := queue.StartEventConsumer(ctx, cfg.RabbitURL, queue.DefaultLogPath); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("event-consumer: %v", err)
			}
		}()
	}

	clk := clock.Real()
	engine := pass.New(store, clk, pass.Config{
		Policies:     policies,
		Location:     loc,
		StoreTimeout: cfg.StoreTimeout,
	}, notifier)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	loop := scheduler.New(engine, cfg.SweepInterval, cfg.SweepTimeout, scheduler.NewMetrics(reg))

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Printf("ratelimit: redis unreachable, limiter disabled")
	} else {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	h := router.Handlers{
		Health:     &handler.HealthHandler{Store: store, Now: clk.Now},
		Auth:       handler.NewAuthHandler(cfg, store),
		Passes:     handler.NewPassHandler(engine),
		Attendance: &handler.AttendanceHandler{Engine: engine, Log: store, Users: store, Location: loc},
		Users:      &handler.UserHandler{Users: store, BcryptCost: cfg.BcryptCost, Now: clk.Now},
		Logs:       &handler.LogHandler{Logs: store, Now: clk.Now},
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	router.RegisterRoutes(e, h)
	router.RegisterAPI(e, h, cfg.JWTSecret, limiter)

	loop.Start(ctx)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, store=%s, tz=%s)", addr, cfg.Env, cfg.StoreDriver, loc)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	loop.Stop()
	if publisher != nil {
		publisher.Close()
	}
}
