package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	contactstore "rollcall/internal/contact/store/contacts"
	dedupecache "rollcall/internal/dedupe/cache"
	dedupehandler "rollcall/internal/dedupe/handler"
	dedupemetrics "rollcall/internal/dedupe/metrics"
	dedupeservice "rollcall/internal/dedupe/service"
	exporthandler "rollcall/internal/export/handler"
	exportmetrics "rollcall/internal/export/metrics"
	exportservice "rollcall/internal/export/service"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/logger"
	platformmetrics "rollcall/internal/platform/metrics"
	"rollcall/internal/platform/postgres"
	platformredis "rollcall/internal/platform/redis"
	"rollcall/pkg/platform/audit"
	auditkafka "rollcall/pkg/platform/audit/kafka"
	auditpublisher "rollcall/pkg/platform/audit/publisher"
	auditpg "rollcall/pkg/platform/audit/store/postgres"
	authmw "rollcall/pkg/platform/middleware/auth"
	"rollcall/pkg/platform/middleware/metadata"
	requestmw "rollcall/pkg/platform/middleware/request"
	"rollcall/pkg/platform/middleware/requesttime"
)

// main is the composition root: every dependency is constructed here and
// injected explicitly, so nothing in the tree reaches for process globals.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditStores := audit.Fanout{auditpg.New(db)}
	var kafkaSink *auditkafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err = auditkafka.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka audit sink unavailable", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		auditStores = append(auditStores, kafkaSink)
	}
	auditor := auditpublisher.NewPublisher(auditStores,
		auditpublisher.WithAsyncBuffer(256),
		auditpublisher.WithLogger(log))
	defer auditor.Close()

	contacts := contactstore.NewPostgres(db)

	exportSvc, err := exportservice.New(contacts, auditor, log, exportmetrics.New())
	if err != nil {
		log.Error("export service init failed", "error", err)
		os.Exit(1)
	}

	var viewCache dedupeservice.Cache
	if redisClient != nil {
		viewCache = dedupecache.NewRedis(redisClient.Client)
	}
	dedupeSvc, err := dedupeservice.New(contacts, viewCache, newMergePostgresTx(db),
		auditor, log, dedupemetrics.New())
	if err != nil {
		log.Error("dedupe service init failed", "error", err)
		os.Exit(1)
	}

	router := newRouter(cfg, log, exportSvc, dedupeSvc, db, redisClient)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting rollcall", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func newRouter(
	cfg config.Server,
	log *slog.Logger,
	exportSvc *exportservice.Service,
	dedupeSvc *dedupeservice.Service,
	db *sql.DB,
	redisClient *platformredis.Client,
) chi.Router {
	httpMetrics := platformmetrics.New()

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestmw.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(httpMetrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(authmw.NewJWTValidator(cfg.JWTSigningKey), log))
		exporthandler.New(exportSvc, log).Register(r)
		dedupehandler.New(dedupeSvc, log).Register(r)
	})

	return r
}
