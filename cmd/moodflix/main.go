package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/moodflix/internal/config"
	"github.com/genricoloni/moodflix/internal/domain"
	"github.com/genricoloni/moodflix/internal/fetcher"
	"github.com/genricoloni/moodflix/internal/processor"
	"github.com/genricoloni/moodflix/internal/recommender"
	"github.com/genricoloni/moodflix/internal/web"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// AppOptions is the dependency graph of the frontend, shared with the tests
var AppOptions = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		newLogger,
		fx.Annotate(config.NewAppConfig, fx.As(new(domain.Config))),
		newRecommender,
		fx.Annotate(fetcher.NewPosterFetcher, fx.As(new(domain.Fetcher))),
		newPosterProcessor,
		web.NewSessionStore,
		web.NewRouter,
		web.NewServer,
	),

	fx.Invoke(registerHooks),
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	app := fx.New(AppOptions)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a new zap logger instance
func newLogger() (*zap.Logger, error) {
	if config.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newRecommender(logger *zap.Logger, cfg domain.Config) domain.Recommender {
	return recommender.NewHTTPRecommender(logger.Named("recommender"), cfg.GetBackendURL())
}

func newPosterProcessor(logger *zap.Logger) domain.ImageProcessor {
	return processor.NewPosterProcessor(logger.Named("poster"), processor.DefaultPosterSize)
}

// registerHooks ties the HTTP server to the application lifecycle
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, srv *web.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Moodflix started")
			return srv.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			return srv.Stop(ctx)
		},
	})
}
