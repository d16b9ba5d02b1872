package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/common"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/session"
)

// serveMetrics exposes the controller counters as Prometheus gauges until
// the returned stop function is called.
func serveMetrics(addr string, ctl *session.Controller) func() {
	reg := prometheus.NewRegistry()
	sent := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sv_packets_sent_total",
		Help: "Sampled-value frames transmitted in the current session.",
	})
	failed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sv_packets_failed_total",
		Help: "Sampled-value frames that failed to transmit.",
	})
	gooseFrames := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "goose_frames_total",
		Help: "GOOSE frames decoded by the stop listener.",
	})
	sampleRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sv_sample_rate_hz",
		Help: "Configured sample rate of the active session.",
	})
	reg.MustRegister(sent, failed, gooseFrames, sampleRate)
	sampleRate.Set(float64(ctl.Config().SampleRate))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				snap := ctl.Metrics().Snapshot()
				sent.Set(float64(snap.PacketsSent))
				failed.Set(float64(snap.PacketsFailed))
				gooseFrames.Set(float64(snap.GooseFrames))
			case <-done:
				return
			}
		}
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.Logf("metrics listener: %v", err)
		}
	}()
	common.Logf("metrics on http://%s/metrics", addr)

	return func() {
		close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
