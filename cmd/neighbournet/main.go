package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/neighbournet/neighbournet/internal/config"
	"github.com/neighbournet/neighbournet/internal/infra/database"
	"github.com/neighbournet/neighbournet/internal/infra/repository"
	"github.com/neighbournet/neighbournet/internal/present/rest"
	"github.com/neighbournet/neighbournet/internal/present/rest/middleware"
	"github.com/neighbournet/neighbournet/internal/service"
	"github.com/neighbournet/neighbournet/internal/usecase"
)

func main() {
	configPath := os.Getenv("NEIGHBOURNET_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	conf, err := config.Load(configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		panic("failed to connect database")
	}

	err = database.MigratePostgres(db)
	if err != nil {
		panic("failed to migrate database")
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)

	domainConf := conf.Domain()

	requestRepo := repository.NewRequestRepository(db, nil)
	if conf.Server.MemcachedAddr != "" {
		requestRepo = repository.NewRequestRepository(db, database.NewMemcached(conf.Server.MemcachedAddr))
	}
	actorRepo := repository.NewActorRepository(db)

	presence := service.NewPresenceDirectory()
	signal := service.NewSignalService(rdb)
	dispatcher := service.NewDispatcher(actorRepo, presence, signal)
	auth := service.NewAuthService(&domainConf)

	requestUC := usecase.NewRequestUsecase(requestRepo, dispatcher, domainConf.DiscoveryRadiusMeters)
	actorUC := usecase.NewActorUsecase(actorRepo)

	if conf.Server.EnableTrace {
		shutdown, err := setupTracer(conf.Server.TraceEndpoint)
		if err != nil {
			panic("failed to set up tracing: " + err.Error())
		}
		defer shutdown()
	}

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("neighbournet"))
	}

	authMw := middleware.NewAuthMiddleware(auth)
	e.Use(authMw.IdentifyActor)

	handler := rest.NewHandler(domainConf, requestUC, actorUC, auth, presence)
	handler.RegisterRoutes(e)

	slog.Info("starting neighbournet",
		slog.String("addr", conf.Server.Addr),
		slog.String("module", "main"),
	)

	e.Logger.Fatal(e.Start(conf.Server.Addr))
}

func setupTracer(endpoint string) (func(), error) {
	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("neighbournet"),
		)),
	)
	otel.SetTracerProvider(provider)

	return func() {
		provider.Shutdown(context.Background())
	}, nil
}
