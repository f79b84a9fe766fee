// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes term counts and loop activity to Prometheus.
//
// Both collectors read live state on each scrape rather than mirroring it:
// term counts come from a table snapshot and loop totals from loop.Stats.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/streamtally/internal/loop"
	"github.com/jeranaias/streamtally/internal/vocab"
)

var (
	termCountDesc = prometheus.NewDesc(
		"streamtally_term_count",
		"Running count per vocabulary term, baseline included",
		[]string{"term", "category"},
		nil,
	)
	messagesDesc = prometheus.NewDesc(
		"streamtally_messages_total",
		"Messages processed by outcome",
		[]string{"outcome"},
		nil,
	)
	persistsDesc = prometheus.NewDesc(
		"streamtally_persists_total",
		"Snapshot writes by result",
		[]string{"result"},
		nil,
	)
	rendersDesc = prometheus.NewDesc(
		"streamtally_renders_total",
		"Dashboard repaints by result",
		[]string{"result"},
		nil,
	)
	reconnectsDesc = prometheus.NewDesc(
		"streamtally_reconnects_total",
		"Successful stream reconnects",
		nil, nil,
	)
	stateDesc = prometheus.NewDesc(
		"streamtally_state",
		"Current loop state (1 for the active state)",
		[]string{"state"},
		nil,
	)
)

// =============================================================================
// TERM COLLECTOR
// =============================================================================

// Snapshotter is anything that can report all term counts at once.
type Snapshotter interface {
	Snapshot() map[string]int
}

// TermCollector emits one gauge per vocabulary term.
type TermCollector struct {
	counts Snapshotter
	vocab  *vocab.Vocabulary
}

// NewTermCollector returns a collector over counts.
func NewTermCollector(counts Snapshotter, v *vocab.Vocabulary) *TermCollector {
	return &TermCollector{counts: counts, vocab: v}
}

// Describe implements prometheus.Collector.
func (c *TermCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- termCountDesc
}

// Collect implements prometheus.Collector.
func (c *TermCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.counts.Snapshot()
	for _, term := range c.vocab.Terms() {
		n, ok := snap[term]
		if !ok {
			continue
		}
		cat, _ := c.vocab.CategoryOf(term)
		ch <- prometheus.MustNewConstMetric(termCountDesc, prometheus.GaugeValue, float64(n), term, cat)
	}
}

// =============================================================================
// LOOP COLLECTOR
// =============================================================================

// LoopSource reports loop state and totals.
type LoopSource interface {
	State() loop.State
	Stats() loop.Stats
}

// LoopCollector emits loop totals as counters and the state as a gauge set.
type LoopCollector struct {
	src LoopSource
}

// NewLoopCollector returns a collector over src.
func NewLoopCollector(src LoopSource) *LoopCollector {
	return &LoopCollector{src: src}
}

// Describe implements prometheus.Collector.
func (c *LoopCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- messagesDesc
	ch <- persistsDesc
	ch <- rendersDesc
	ch <- reconnectsDesc
	ch <- stateDesc
}

// Collect implements prometheus.Collector.
func (c *LoopCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	counter := func(d *prometheus.Desc, v int, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	counter(messagesDesc, s.Matched, "matched")
	counter(messagesDesc, s.Spurious, "spurious")
	counter(persistsDesc, s.Persists, "ok")
	counter(persistsDesc, s.PersistFailures, "error")
	counter(rendersDesc, s.Renders, "ok")
	counter(rendersDesc, s.RenderFailures, "error")
	counter(reconnectsDesc, s.Reconnects)

	current := c.src.State()
	for _, st := range []loop.State{loop.StateInit, loop.StateRunning, loop.StateRecovering, loop.StateStopped} {
		v := 0.0
		if st == current {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, v, st.String())
	}
}

// =============================================================================
// REGISTRY AND SERVER
// =============================================================================

// NewRegistry returns a registry with the Go runtime collectors and the
// given application collectors.
func NewRegistry(cs ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(cs...)
	return reg
}

// Serve exposes reg on addr at /metrics until ctx ends.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}
