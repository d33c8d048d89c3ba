// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type relayMetrics struct {
	relayed            prometheus.Counter
	filtered           *prometheus.CounterVec
	sendFailures       *prometheus.CounterVec
	fallbacks          prometheus.Counter
	attachmentFailures prometheus.Counter
	presenceUpdates    *prometheus.CounterVec
	mirrorPosts        *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *relayMetrics
)

// metrics registers the relay metrics on first use.
func metrics() *relayMetrics {
	metricsOnce.Do(func() {
		metricsInst = &relayMetrics{
			relayed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dmrelay_messages_relayed_total",
				Help: "Direct messages delivered to the relay channel",
			}),
			filtered: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "dmrelay_messages_filtered_total",
				Help: "Incoming messages that were not relayed, by reason",
			}, []string{"reason"}),
			sendFailures: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "dmrelay_send_failures_total",
				Help: "Failed relay channel lookups and sends, by stage",
			}, []string{"stage"}),
			fallbacks: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dmrelay_send_fallbacks_total",
				Help: "Notifications delivered without their files after a failed send",
			}),
			attachmentFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dmrelay_attachment_fetch_failures_total",
				Help: "Attachments that could not be fetched for upload",
			}),
			presenceUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "dmrelay_presence_updates_total",
				Help: "Presence updates, by result",
			}, []string{"result"}),
			mirrorPosts: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "dmrelay_mirror_posts_total",
				Help: "Mirrored notifications, by sink and result",
			}, []string{"sink", "result"}),
		}
	})
	return metricsInst
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// StartMetricsServer serves /metrics and /healthz on addr until ctx is done.
func StartMetricsServer(ctx context.Context, addr string, log zerolog.Logger) *http.Server {
	metrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("Starting metrics server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return server
}
