package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pluginapi "k8s.io/kubelet/pkg/apis/deviceplugin/v1beta1"

	"github.com/photonetc/lltf-device-plugin/pefilter"
)

var (
	// Filter operation metrics
	FilterOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pefilter_operations_total",
			Help: "Total number of hardware operations by result status",
		},
		[]string{"op", "system", "status"},
	)

	FilterOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pefilter_operation_duration_seconds",
			Help:    "Duration of hardware operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"op", "system"},
	)

	// Device plugin metrics
	DeviceHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pefilter_device_healthy",
			Help: "1 when the filter system passed its last health probe",
		},
		[]string{"device"},
	)

	AllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pefilter_allocations_total",
			Help: "Total number of filter systems handed to containers",
		},
		[]string{"resource", "device"},
	)
)

// observeFilterOp records a hardware call reported by a filter handle.
func observeFilterOp(op, system string, err error, elapsed time.Duration) {
	status := pefilter.StatusOf(err)
	FilterOpsTotal.WithLabelValues(op, system, status.String()).Inc()
	FilterOpDuration.WithLabelValues(op, system).Observe(elapsed.Seconds())
}

func recordHealth(id, health string) {
	v := 0.0
	if health == pluginapi.Healthy {
		v = 1
	}
	DeviceHealthy.WithLabelValues(id).Set(v)
}

// serveMetrics exposes /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, log *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Metrics server failed", "addr", addr, "error", err)
	}
}
