// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/gin-gonic/gin"
	"go-lift-control/config"
	"go-lift-control/logger"
	"go-lift-control/metrics"
	"go-lift-control/services"
	"go-lift-control/storage"
	"go-lift-control/timers"
	"go-lift-control/websocket"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("lift-control: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg.LogDir); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetLogLevel(cfg.Env)
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	g, gctx := errgroup.WithContext(ctx)

	deps := services.EngineDeps{Store: store, Lease: cfg.AttemptLease}
	var gauge websocket.SubscriberGauge
	if cfg.CloudWatch {
		recorder, err := metrics.NewCloudWatchRecorder(cfg.AWSRegion, cfg.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("cloudwatch: %w", err)
		}
		deps.Metrics = recorder
		gauge = recorder
		g.Go(func() error { return recorder.Run(gctx) })
	}
	if cfg.ArchiveBucket != "" {
		archiver, err := storage.NewS3Archiver(storage.S3ArchiverConfig{
			Region: cfg.AWSRegion,
			Bucket: cfg.ArchiveBucket,
			Prefix: cfg.ArchivePrefix,
		})
		if err != nil {
			return fmt.Errorf("s3 archive: %w", err)
		}
		deps.Archiver = archiver
	}

	hub := websocket.NewHub(nil, gauge)
	deps.Publisher = hub
	engine := services.NewLiveEngine(deps)
	hub.SetCommands(engine)

	if err := engine.Restore(ctx); err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}

	clock := timers.NewTimerManager(engine, cfg.TimerTick)
	sweeper, err := startSweeper(gctx, engine, cfg.SweepSchedule)
	if err != nil {
		return err
	}

	var handler http.Handler = setupRouter(cfg, engine, clock, hub)
	if cfg.XRay {
		handler = xray.Handler(xray.NewFixedSegmentNamer(cfg.XRaySegment), handler)
		logger.Info.Printf("[main] X-Ray tracing enabled as segment %q", cfg.XRaySegment)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info.Printf("[main] listening on %s (env=%s, store=%s)", srv.Addr, cfg.Env, cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info.Println("[main] shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		<-sweeper.Stop().Done()
		clock.StopAll()
		err := srv.Shutdown(shutdownCtx)
		hub.CloseAll()
		return err
	})

	return g.Wait()
}

// openStore picks the session store named by DATABASE_DRIVER.
func openStore(ctx context.Context, cfg config.Config) (services.SessionStore, func(), error) {
	switch cfg.DatabaseDriver {
	case "memory":
		logger.Warn.Println("[openStore] using the in-memory store; sessions are lost on restart")
		return storage.NewMemoryStore(), func() {}, nil
	case "postgres", "sqlite":
		db, err := storage.OpenSQLStore(ctx, storage.Dialect(cfg.DatabaseDriver), cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s store: %w", cfg.DatabaseDriver, err)
		}
		return db, func() {
			if err := db.Close(); err != nil {
				logger.Error.Printf("[openStore] close: %v", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
}
