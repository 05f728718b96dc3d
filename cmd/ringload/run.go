package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gotcp/ring"
	"github.com/gotcp/ring/ammo"
	"github.com/gotcp/ring/report"
	"github.com/gotcp/ring/ringmetrics"
)

// tally is the per-worker outcome of a run.
type tally struct {
	successes int64
	failures  int64
	codes     map[string]int64
	latencies []time.Duration
}

func newTally() *tally {
	return &tally{codes: map[string]int64{}}
}

func (t *tally) record(result *ring.Result) {
	t.codes[result.ResponseCode]++
	if result.Success {
		t.successes++
		t.latencies = append(t.latencies, result.Latency())
		return
	}
	t.failures++
}

func (t *tally) merge(other *tally) {
	t.successes += other.successes
	t.failures += other.failures
	for code, n := range other.codes {
		t.codes[code] += n
	}
	t.latencies = append(t.latencies, other.latencies...)
}

// percentile expects sorted latencies.
func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	idx := int(float64(len(latencies)-1) * p)
	return latencies[idx]
}

// runLoad drives config.Workers samplers until the request budget is spent,
// the duration elapses or ctx is done, then prints and stores the summary.
func runLoad(ctx context.Context, config *LoadConfig, out io.Writer) (*report.Run, error) {
	level, err := config.Level()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var feeder *ammo.Feeder
	if config.Ammo != "" {
		if feeder, err = ammo.Open(config.Ammo, ammo.DEFAULT_CAPACITY, logger); err != nil {
			return nil, fmt.Errorf("failed to load ammo: %w", err)
		}
		defer feeder.Close()
	}

	registry := ring.NewRegistry()
	source := ring.NewSource(registry, logger)
	source.OnError = func(id int, code ring.ErrorCode, err error) {
		logger.Debug("tokenError", slog.Int("token", id), slog.String("code", code.String()), slog.Any("err", err))
	}
	r, err := source.OnStart(config.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to start ring: %w", err)
	}
	defer source.OnStop()

	results := ringmetrics.NewResults()
	if config.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := ringmetrics.Register(reg, ringmetrics.NewCollector(registry), results); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		server := &http.Server{
			Addr:              config.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metricsFailed", slog.Any("err", err))
			}
		}()
		defer server.Close()
	}

	duration, err := config.RunDuration()
	if err != nil {
		return nil, err
	}
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	var issued atomic.Int64
	tallies := make([]*tally, config.Workers)
	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < config.Workers; w++ {
		t := newTally()
		tallies[w] = t
		g.Go(func() error {
			sampler := ring.NewSampler(registry, config.Source.Name)
			sampler.Hex = config.Hex
			for {
				if config.Requests > 0 && issued.Add(1) > config.Requests {
					return nil
				}
				if gctx.Err() != nil {
					return nil
				}
				payload := []byte(config.Payload)
				if feeder != nil {
					next, err := feeder.Next()
					if err != nil {
						return err
					}
					payload = next
				}
				result := sampler.Sample(gctx, payload)
				if !result.Success && gctx.Err() != nil {
					sampler.Recycle(result)
					return nil
				}
				t.record(result)
				results.Observe(config.Source.Name, result)
				sampler.Recycle(result)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	finished := time.Now()

	total := newTally()
	for _, t := range tallies {
		total.merge(t)
	}
	sort.Slice(total.latencies, func(i, j int) bool { return total.latencies[i] < total.latencies[j] })

	run := &report.Run{
		RingID:     r.Id,
		Source:     config.Source.Name,
		Network:    r.Network(),
		Addresses:  config.Source.Addresses,
		Capacity:   r.Capacity(),
		Workers:    config.Workers,
		Requests:   total.successes + total.failures,
		Successes:  total.successes,
		Failures:   total.failures,
		Timeouts:   r.Timeouts(),
		Resets:     r.Resets(),
		P50:        percentile(total.latencies, 0.50),
		P99:        percentile(total.latencies, 0.99),
		StartedAt:  started,
		FinishedAt: finished,
	}
	printSummary(out, run, total.codes)

	if config.DB != "" {
		store, err := report.Open(config.DB)
		if err != nil {
			return run, err
		}
		defer store.Close()
		if err := store.Save(run); err != nil {
			return run, err
		}
	}
	return run, nil
}

func printSummary(out io.Writer, run *report.Run, codes map[string]int64) {
	elapsed := run.Duration()
	var rate float64
	if elapsed > 0 {
		rate = float64(run.Requests) / elapsed.Seconds()
	}
	fmt.Fprintf(out, "source:    %s (%s, %d connections)\n", run.Source, run.Network, run.Capacity)
	fmt.Fprintf(out, "requests:  %d in %s (%.1f/s)\n", run.Requests, elapsed.Round(time.Millisecond), rate)
	fmt.Fprintf(out, "success:   %d\n", run.Successes)
	fmt.Fprintf(out, "failure:   %d\n", run.Failures)
	fmt.Fprintf(out, "timeouts:  %d\n", run.Timeouts)
	fmt.Fprintf(out, "resets:    %d\n", run.Resets)
	fmt.Fprintf(out, "latency:   p50 %s  p99 %s\n", run.P50, run.P99)

	names := make([]string, 0, len(codes))
	for code := range codes {
		names = append(names, code)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, code := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", code, codes[code]))
	}
	fmt.Fprintf(out, "codes:     %s\n", strings.Join(parts, " "))
}
