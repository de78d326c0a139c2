package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type loadtestOptions struct {
	sessions    int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
}

func newLoadtestCmd() *cobra.Command {
	opts := loadtestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure validate and refresh throughput against Redis",
		Long: `Seed sessions through the engine, then run a validation phase and a refresh
rotation phase with the given concurrency and report latency percentiles.

Without --redis-addr (or REDIS_ADDR) an in-process miniredis is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.redisAddr == "" {
				opts.redisAddr = os.Getenv("REDIS_ADDR")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.sessions, "sessions", 10000, "number of sessions to seed")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 50000, "operations per phase")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "lt", "cache key prefix")
	return cmd
}

type sessionState struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func runLoadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return errors.New("sessions, concurrency and ops must be > 0")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	addr := opts.redisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	priv, pub, err := generateKeyPair()
	if err != nil {
		return err
	}
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Cache.Prefix = opts.prefix
	cfg.RateLimit.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logger()).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	app := authcore.Application{ID: "loadtest", Name: "Load test", Scope: "lt", Active: true}
	perms := permission.MustSnapshot("lt_items:read", "lt_items:update")

	states := make([]sessionState, opts.sessions)
	fmt.Fprintf(out, "seeding %d sessions...\n", opts.sessions)
	startSeed := time.Now()
	for i := range states {
		pair, err := engine.IssuePair(ctx, fmt.Sprintf("user-%d", i), app, perms)
		if err != nil {
			return fmt.Errorf("seed session %d: %w", i, err)
		}
		states[i].access = pair.AccessToken
		states[i].refresh = pair.RefreshToken
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validate := runPhase(opts.ops, opts.concurrency, 7919, func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		token := s.access
		s.mu.Unlock()
		_, err := engine.ValidateAccessToken(ctx, token)
		return err
	})
	refresh := runPhase(opts.ops, opts.concurrency, 6151, func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := engine.Refresh(ctx, s.refresh)
		if err != nil {
			return err
		}
		s.access, s.refresh = pair.AccessToken, pair.RefreshToken
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validate)
	printStats(out, "refresh", refresh)
	return nil
}

// runPhase executes ops calls of fn across concurrency workers and records
// the latency of each call.
func runPhase(ops, concurrency int, seed int64, fn func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					break
				}
				t0 := time.Now()
				if err := fn(r); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	s := phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
	if total > 0 {
		s.opsPerS = float64(len(samples)) / total.Seconds()
	}
	return s
}

// percentile expects samples sorted ascending.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
