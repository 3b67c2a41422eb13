package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/geneticconstructor/constructor-store/internal/config"
	"github.com/geneticconstructor/constructor-store/internal/infra/database"
	"github.com/geneticconstructor/constructor-store/internal/infra/gateway"
	"github.com/geneticconstructor/constructor-store/internal/infra/repository"
	"github.com/geneticconstructor/constructor-store/internal/metrics"
	"github.com/geneticconstructor/constructor-store/internal/present/rest"
	"github.com/geneticconstructor/constructor-store/internal/service"
	"github.com/geneticconstructor/constructor-store/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}
	domainConf, err := conf.Domain()
	if err != nil {
		return err
	}

	if conf.Server.EnableTrace {
		shutdown, err := initTracer(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	var store usecase.ContentStore = repository.NewCommitRepository(db)
	if mc := database.NewMemcached(conf.Server.MemcachedAddr); mc != nil {
		store = repository.NewCachedCommitRepository(store, mc, m)
	} else {
		slog.Warn("memcached not configured; revision cache disabled", slog.String("module", "main"))
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, "", conf.Server.RedisDB)
	if rdb == nil {
		slog.Warn("redis not configured; commons events disabled", slog.String("module", "main"))
	}
	signals := service.NewSignalService(rdb)

	perms := gateway.NewPermissionGateway(store, domainConf.OwnerCacheTTL)

	versions := usecase.NewVersionUsecase(store, m)
	snapshots := usecase.NewSnapshotUsecase(repository.NewSnapshotRepository(db), versions, perms, m)
	commons := usecase.NewCommonsUsecase(versions, snapshots, perms, signals, m)

	e := echo.New()
	e.HideBanner = true
	e.Validator = rest.NewValidator()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("constructor-store"))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "fqdn": domainConf.FQDN})
	})

	handler := rest.NewHandler(domainConf, versions, snapshots, commons, signals)
	handler.RegisterRoutes(e)

	go func() {
		if err := e.Start(domainConf.Listen); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", slog.String("error", err.Error()), slog.String("module", "main"))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
