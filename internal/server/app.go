package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/origin-crawler/internal/api"
	"github.com/JakeFAU/origin-crawler/internal/clock/system"
	"github.com/JakeFAU/origin-crawler/internal/config"
	"github.com/JakeFAU/origin-crawler/internal/crawler"
	"github.com/JakeFAU/origin-crawler/internal/dispatcher"
	"github.com/JakeFAU/origin-crawler/internal/id/uuid"
	pubsubpublisher "github.com/JakeFAU/origin-crawler/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/origin-crawler/internal/queue/memory"
	gcsstore "github.com/JakeFAU/origin-crawler/internal/storage/gcs"
	localstore "github.com/JakeFAU/origin-crawler/internal/storage/local"
	memorystore "github.com/JakeFAU/origin-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/origin-crawler/internal/storage/postgres"
	"github.com/JakeFAU/origin-crawler/internal/worker"
)

// App is the HTTP crawl service together with its job pipeline.
type App struct {
	*Runtime

	Jobs       crawler.JobStore
	Results    crawler.ResultStore
	Blobs      crawler.BlobStore
	Publisher  crawler.Publisher
	Queue      *queuememory.Queue
	Dispatcher *dispatcher.Dispatcher
	API        *api.Server

	pool      *pgxpool.Pool
	gcsClient *storage.Client
	pubsub    *pubsubpublisher.Publisher
}

// New builds the service from cfg. Callers must Close the App.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	rt, err := NewRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &App{Runtime: rt}

	if err := app.setupDatabase(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	if err := app.setupStorage(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	if err := app.setupPublisher(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.setupDispatcher()

	app.API = api.NewServer(api.Deps{
		Jobs:       app.Jobs,
		Dispatcher: app.Dispatcher,
		Fetchers:   app.Fetchers,
		Crawler:    app.Crawler,
		IDs:        uuid.NewUUIDGenerator(),
		Clock:      system.New(),
		Ready:      app.ready,
	}, cfg, logger.Named("api"))
	return app, nil
}

func (a *App) setupDatabase(ctx context.Context) error {
	if !a.cfg.Database.Enabled {
		a.Jobs = memorystore.NewJobStore()
		a.logger.Info("database disabled; jobs kept in memory")
		return nil
	}
	pool, err := pgstore.Connect(ctx, pgstore.Config{
		DSN:             a.cfg.Database.DSN,
		JobsTable:       a.cfg.Database.JobsTable,
		ResultsTable:    a.cfg.Database.ResultsTable,
		MaxConns:        a.cfg.Database.MaxConns,
		MinConns:        a.cfg.Database.MinConns,
		MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	a.pool = pool
	if a.cfg.Database.EnsureSchema {
		if err := pgstore.EnsureSchema(ctx, pool, a.cfg.Database.JobsTable, a.cfg.Database.ResultsTable); err != nil {
			return err
		}
	}
	results, err := pgstore.NewResultStore(pool, a.cfg.Database.ResultsTable)
	if err != nil {
		return err
	}
	a.Results = results

	if a.cfg.Jobs.Store == "postgres" {
		jobs, err := pgstore.NewJobStore(pool, a.cfg.Database.JobsTable)
		if err != nil {
			return err
		}
		a.Jobs = jobs
	} else {
		a.Jobs = memorystore.NewJobStore()
	}
	a.logger.Info("database initialized",
		zap.String("jobs_store", a.cfg.Jobs.Store),
		zap.String("results_table", a.cfg.Database.ResultsTable),
	)
	return nil
}

func (a *App) setupStorage(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case "local":
		store, err := localstore.New(localstore.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("local storage init failed: %w", err)
		}
		a.Blobs = store
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcsClient = client
		store, err := gcsstore.New(client, gcsstore.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("gcs storage init failed: %w", err)
		}
		a.Blobs = store
	default:
		a.Blobs = memorystore.NewBlobStore()
	}
	a.logger.Info("storage initialized",
		zap.String("backend", a.cfg.Storage.Backend),
		zap.String("prefix", a.cfg.Storage.Prefix),
	)
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if !a.cfg.PubSub.Enabled {
		a.logger.Info("completion notices disabled")
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsub = pubsubpublisher.New(client)
	a.Publisher = a.pubsub
	a.logger.Info("pubsub publisher initialized",
		zap.String("project_id", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupDispatcher() {
	a.Queue = queuememory.NewQueue(a.cfg.Jobs.QueueDepth)
	workerCfg := worker.Config{
		BlobPrefix: a.cfg.Storage.Prefix,
		JobTimeout: a.cfg.Jobs.Timeout,
	}
	if a.Publisher != nil {
		workerCfg.Topic = a.cfg.PubSub.TopicName
	}
	deps := worker.Deps{
		Queue:     a.Queue,
		Jobs:      a.Jobs,
		Results:   a.Results,
		Blobs:     a.Blobs,
		Publisher: a.Publisher,
		Fetchers:  a.Fetchers,
		Crawler:   a.Crawler,
		Clock:     system.New(),
	}
	runners := make([]dispatcher.Runner, 0, a.cfg.Jobs.Workers)
	for i := 0; i < a.cfg.Jobs.Workers; i++ {
		runners = append(runners, worker.New(deps, workerCfg, a.logger.Named("worker").With(zap.Int("worker_id", i))))
	}
	a.Dispatcher = dispatcher.New(a.Queue, runners...)
	a.logger.Info("dispatcher initialized",
		zap.Int("workers", a.cfg.Jobs.Workers),
		zap.Int("queue_depth", a.cfg.Jobs.QueueDepth),
	)
}

func (a *App) ready(ctx context.Context) error {
	if err := a.Ping(ctx); err != nil {
		return err
	}
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

// Run serves HTTP and processes jobs until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	workersDone := make(chan error, 1)
	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()
	go func() {
		workersDone <- a.Dispatcher.Run(workerCtx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.API.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown failed", zap.Error(err))
	}

	// Queued jobs drain until the shutdown deadline, then are cancelled.
	a.Queue.Close()
	select {
	case err := <-workersDone:
		if err != nil {
			a.logger.Error("dispatcher stopped with error", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		a.logger.Warn("shutdown deadline reached; cancelling running jobs")
		cancelWorkers()
		<-workersDone
	}

	if err := a.Close(shutdownCtx); err != nil {
		a.logger.Error("infrastructure close failed", zap.Error(err))
	}
	return runErr
}

// Close releases every client the App opened. It is safe to call on a
// partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pubsub close: %w", err))
		}
		a.pubsub = nil
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gcs close: %w", err))
		}
		a.gcsClient = nil
	}
	if a.Results != nil {
		if err := a.Results.Close(); err != nil {
			errs = append(errs, fmt.Errorf("result store close: %w", err))
		}
		a.Results = nil
	} else if a.pool != nil {
		a.pool.Close()
	}
	a.pool = nil
	if a.Runtime != nil {
		if err := a.Runtime.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
