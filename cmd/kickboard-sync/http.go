package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/BearBump/KickSync/config"
	"github.com/BearBump/KickSync/internal/services/kicksync"
	"github.com/go-chi/chi/v5"
)

type syncRunner interface {
	Run(ctx context.Context) (kicksync.Summary, error)
	Stats() kicksync.Stats
}

type syncHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	svc syncRunner
	cfg *config.Config
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newSyncRouter(ctx context.Context, opts syncHTTPOpts) http.Handler {
	var running atomic.Bool

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "running": running.Load()})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.svc == nil {
			writeJSON(w, http.StatusOK, map[string]string{"error": "sync not wired"})
			return
		}
		writeJSON(w, http.StatusOK, opts.svc.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		if opts.cfg == nil {
			writeJSON(w, http.StatusOK, map[string]string{"error": "config not wired"})
			return
		}
		// Без секретов: только рабочие настройки.
		c := opts.cfg
		writeJSON(w, http.StatusOK, map[string]any{
			"firestoreMode":           c.Firestore.Mode,
			"firestoreProjectId":      c.Firestore.ProjectID,
			"firestoreCollection":     c.Firestore.Collection,
			"identityMode":            c.Identity.Mode,
			"franchiseSearch":         c.Identity.FranchiseSearch,
			"regionSearch":            c.Identity.RegionSearch,
			"defaultsCacheTtlSeconds": c.Identity.DefaultsCacheTTLSec,
			"webhookEnabled":          c.Webhook.URL != "",
			"webhookRateLimitPerMin":  c.Webhook.RateLimitPerMinute,
			"kafkaEnabled":            c.KafkaEnabled(),
			"kafkaTopic":              c.Kafka.KickboardChangedTopicName,
			"actionTimeoutSeconds":    c.Sync.ActionTimeoutSeconds,
			"batchSize":               kicksync.BatchSize,
		})
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if opts.svc == nil {
			writeJSON(w, http.StatusOK, map[string]string{"error": "sync not wired"})
			return
		}
		if !running.CompareAndSwap(false, true) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "sync already running"})
			return
		}
		defer running.Store(false)

		// контекст сервера: прогон не обрывается вместе с запросом
		sum, err := opts.svc.Run(ctx)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "summary": sum})
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})

	return r
}

func runSyncHTTPServer(ctx context.Context, opts syncHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8083"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}
	slog.Info("ops http listening", "addr", lis.Addr().String())

	srv := &http.Server{Handler: newSyncRouter(ctx, opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
