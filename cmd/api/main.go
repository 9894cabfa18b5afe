package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"batchgen/internal/adapter/repo"
	"batchgen/internal/http/handlers"
	httpapi "batchgen/internal/http/httpapi"
	"batchgen/internal/imagepipe"
	"batchgen/internal/infra"
	"batchgen/internal/pipeline"
	"batchgen/internal/progress"
	"batchgen/internal/providers/contentgen"
	"batchgen/internal/providers/imagegen"
	"batchgen/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	// appCtx outlives individual requests; batch work started by a request
	// keeps running after the request returns and stops on shutdown.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	dbpool, err := infra.NewDBPool(appCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if err := repo.EnsureSchema(appCtx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure database schema")
	}
	recipes := repo.NewRecipeRepository(dbpool)

	contentClient, err := contentgen.NewClient(contentgen.Options{
		APIKey:  cfg.ContentGenAPIKey,
		BaseURL: cfg.ContentGenBaseURL,
		Model:   cfg.ContentGenModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build content generation client")
	}
	imageClient, err := imagegen.NewClient(imagegen.Options{
		APIKey:  cfg.ImageGenAPIKey,
		BaseURL: cfg.ImageGenBaseURL,
		Model:   cfg.ImageGenModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build image generation client")
	}

	var store storage.BlobStore
	if cfg.SupabaseURL != "" {
		store, err = storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build supabase store")
		}
		logger.Info().Str("bucket", cfg.SupabaseBucket).Msg("using supabase object storage")
	} else {
		store, err = storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build file store")
		}
		logger.Info().Str("path", cfg.StoragePath).Msg("using filesystem object storage")
	}

	monitor := progress.NewMonitor(cfg.ProgressRetention)
	broker := progress.NewBroker()
	monitor.OnChange(broker.Publish)

	images := imagepipe.New(imageClient, store, recipes, monitor, logger, imagepipe.Options{
		GenConcurrency:    int64(cfg.ImageGenConcurrency),
		UploadConcurrency: int64(cfg.ImageUploadConcurrency),
	})

	planner := pipeline.NewPlanner(cfg.ChunkSize, logger)
	generator := pipeline.NewGenerator(contentClient, logger)
	validator := pipeline.NewValidator(logger)
	persister := pipeline.NewPersister(recipes, logger)
	coordinator := pipeline.NewCoordinator(appCtx, planner, generator, validator, persister, images, monitor, logger, cfg.ChunkParallelism)

	app := handlers.NewApp(coordinator, monitor, broker, recipes, dbpool, logger)
	router := httpapi.NewRouter(app, cfg)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	appCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
