package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paperbase.org/internal/activity"
	"paperbase.org/internal/analytics"
	"paperbase.org/internal/bus"
	"paperbase.org/internal/config"
	"paperbase.org/internal/consumer"
	"paperbase.org/internal/document"
	"paperbase.org/internal/httpapi"
	"paperbase.org/internal/obs"
	"paperbase.org/internal/org"
	"paperbase.org/internal/sched"
	"paperbase.org/internal/search"
	"paperbase.org/internal/storage"
	"paperbase.org/internal/store/memory"
	"paperbase.org/internal/store/pg"
	"paperbase.org/internal/webhook"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	ctx := context.Background()

	cfg := config.Default()
	if path := os.Getenv("PAPERBASE_CONFIG"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Stores. Without a DSN the service runs fully in-process, which is
	// enough for local development.
	var (
		docStore      document.Store
		orgStore      org.Store
		webhookSource webhook.Source = webhook.StaticSource{}
		pgStore       *pg.Store
	)
	if dsn := os.Getenv("PAPERBASE_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		docStore = pgStore.Documents()
		orgStore = pgStore.Organizations()
		webhookSource = pgStore.Webhooks()
	} else {
		mem := memory.New()
		docStore = mem.Documents()
		orgStore = mem.Organizations()
	}

	blobs, err := storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	// Event bus and consumers.
	b := bus.New()
	idx := search.New()

	if err := consumer.RegisterSearchIndex(b, idx); err != nil {
		log.Fatalf("wire search index: %v", err)
	}
	if err := consumer.RegisterActivityLog(b, activity.NewLog(&activity.MemorySink{})); err != nil {
		log.Fatalf("wire activity log: %v", err)
	}
	if err := consumer.RegisterWebhooks(b, webhook.NewDispatcher(webhookSource,
		webhook.WithIssuer(cfg.Webhooks.Issuer),
		webhook.WithTimeout(cfg.Webhooks.Timeout()),
	)); err != nil {
		log.Fatalf("wire webhooks: %v", err)
	}
	if err := consumer.RegisterAnalytics(b, analytics.NewLogTracker()); err != nil {
		log.Fatalf("wire analytics: %v", err)
	}

	// Lifecycle services and the purge engine.
	docs := document.NewService(docStore, blobs, b,
		document.WithRetention(cfg.Lifecycle.Retention()),
		document.WithSweepBatchSize(cfg.Lifecycle.PurgeBatchSize),
	)
	purger := org.NewPurger(orgStore, blobs, b,
		org.WithBatchSize(cfg.Lifecycle.PurgeBatchSize),
		org.WithDeleteRate(cfg.Lifecycle.StorageDeletesPerSecond),
		org.WithIndex(idx),
	)

	// Retention schedules.
	var schedOpts []sched.Option
	if cfg.Lifecycle.RunSweepsOnStart {
		schedOpts = append(schedOpts, sched.WithRunOnStart())
	}
	scheduler := sched.New(schedOpts...)
	if err := scheduler.Add("document-retention", cfg.Lifecycle.DocumentSweepSchedule, func(ctx context.Context) error {
		_, err := docs.DeleteExpired(ctx)
		return err
	}); err != nil {
		log.Fatalf("schedule document sweep: %v", err)
	}
	if err := scheduler.Add("organization-purge", cfg.Lifecycle.OrganizationSweepSchedule, func(ctx context.Context) error {
		_, err := purger.PurgeExpired(ctx)
		return err
	}); err != nil {
		log.Fatalf("schedule organization purge: %v", err)
	}
	scheduler.Start()

	// Ops HTTP surface.
	api := httpapi.New(version, commit)
	if pgStore != nil {
		api.AddReadyProbe("db", func(ctx context.Context) error {
			return pgStore.DB().PingContext(ctx)
		})
	}

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting paperbase-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop()
	_ = srv.Shutdown(shutdownCtx)
	// Let in-flight event handlers finish before the process exits.
	b.Drain()
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
