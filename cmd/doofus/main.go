// Headless doofus simulation.
//
// Profiling:
// go build ./cmd/doofus
// ./doofus -ticks 2000 -tick-rate 1ms -profile cpu
// go tool pprof -http=":8000" ./doofus cpu.pprof

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/TheBitDrifter/pen"
	"github.com/TheBitDrifter/pen/internal/logging"
	"github.com/TheBitDrifter/pen/internal/observability"
	"github.com/TheBitDrifter/pen/sim"
	"github.com/TheBitDrifter/table"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
)

// Config is the command line of the doofus binary.
type Config struct {
	Ticks       int
	TickRate    time.Duration
	Doofuses    int
	Seed        uint64
	Workers     int
	ChunkSize   int
	MetricsAddr string
	Profile     string // cpu | mem
	LogLevel    string
	LogFormat   string
	Tracing     observability.TracingConfig
}

func parseFlags(args []string) (Config, error) {
	def := sim.DefaultConfig()
	cfg := Config{}

	fs := flag.NewFlagSet("doofus", flag.ContinueOnError)
	fs.IntVar(&cfg.Ticks, "ticks", 0, "number of ticks to run; 0 runs until interrupted")
	fs.DurationVar(&cfg.TickRate, "tick-rate", def.TickRate, "wall time between ticks")
	fs.IntVar(&cfg.Doofuses, "doofuses", def.DoofusesPerTeam, "doofuses per team")
	fs.Uint64Var(&cfg.Seed, "seed", def.Seed, "random seed")
	fs.IntVar(&cfg.Workers, "workers", 0, "dispatcher workers; 0 uses GOMAXPROCS")
	fs.IntVar(&cfg.ChunkSize, "chunk-size", 256, "rows per scheduled job")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables")
	fs.StringVar(&cfg.Profile, "profile", "", "write a cpu or mem profile to the working directory")
	fs.StringVar(&cfg.LogLevel, "log-level", os.Getenv("LOG_LEVEL"), "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", os.Getenv("LOG_FORMAT"), "text or json")
	fs.StringVar(&cfg.Tracing.Exporter, "trace", os.Getenv("PEN_TRACE_EXPORTER"), "trace exporter: stdout or otlp; empty disables")
	fs.StringVar(&cfg.Tracing.Endpoint, "trace-endpoint", os.Getenv("PEN_OTLP_ENDPOINT"), "OTLP/gRPC collector address")
	fs.Float64Var(&cfg.Tracing.SampleRatio, "trace-ratio", 1, "share of ticks traced")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	switch {
	case cfg.Ticks < 0:
		return Config{}, fmt.Errorf("ticks must not be negative, got %d", cfg.Ticks)
	case cfg.TickRate <= 0:
		return Config{}, fmt.Errorf("tick-rate must be positive, got %s", cfg.TickRate)
	case cfg.Doofuses <= 0:
		return Config{}, fmt.Errorf("doofuses must be positive, got %d", cfg.Doofuses)
	case cfg.ChunkSize <= 0:
		return Config{}, fmt.Errorf("chunk-size must be positive, got %d", cfg.ChunkSize)
	}
	switch cfg.Profile {
	case "", "cpu", "mem":
	default:
		return Config{}, fmt.Errorf("unsupported profile %q", cfg.Profile)
	}
	if err := cfg.Tracing.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// simConfig derives the simulation tunables from the command line.
func (c Config) simConfig() sim.Config {
	cfg := sim.DefaultConfig().WithDoofuses(c.Doofuses)
	cfg.Seed = c.Seed
	cfg.TickRate = c.TickRate
	return cfg
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	switch cfg.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "simulation aborted", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log logging.Logger) error {
	traceCfg := cfg.Tracing
	traceCfg.Attributes = append(traceCfg.Attributes,
		attribute.Int("sim.doofuses_per_team", cfg.Doofuses),
		attribute.Int64("sim.seed", int64(cfg.Seed)),
	)
	tracing, err := observability.NewTracing(ctx, traceCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.Close(context.Background())

	collector, err := observability.NewTickCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if srv := serveMetrics(cfg.MetricsAddr, collector, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	pen.Config.SetWorkers(cfg.Workers)
	pen.Config.SetChunkSize(cfg.ChunkSize)
	storage := pen.Factory.NewStorage(table.Factory.NewSchema())
	defer storage.Close()

	s, err := sim.New(storage, cfg.simConfig(),
		sim.WithLogger(log),
		sim.WithMetrics(collector),
		sim.WithTracerProvider(tracing.Provider),
	)
	if err != nil {
		return err
	}
	if err := s.Seed(ctx); err != nil {
		return err
	}

	log.Info(ctx, "starting simulation",
		logging.Int("workers", storage.Dispatcher().Workers()),
		logging.Int("ticks", cfg.Ticks),
		logging.Duration("tick_rate", cfg.TickRate),
	)
	start := time.Now()
	if err := s.Run(ctx, cfg.Ticks); err != nil {
		return err
	}

	cats := s.Categories()
	for _, team := range sim.Teams {
		log.Info(ctx, "final population",
			logging.String("team", team.String()),
			logging.Int("idle", storage.Count(cats.DoofusNotEating[team])),
			logging.Int("eating", storage.Count(cats.DoofusEating[team])),
			logging.Int("food", storage.Count(cats.FoodNotEaten[team])+storage.Count(cats.FoodEaten[team])),
		)
	}
	log.Info(ctx, "simulation stopped",
		logging.Uint64("ticks", s.Ticks()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func serveMetrics(addr string, collector *observability.TickCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
