package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/TheBitDrifter/pen"
	"github.com/TheBitDrifter/pen/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/TheBitDrifter/pen/sim"

// ErrHalted is returned by Step once an earlier tick has failed.
var ErrHalted = errors.New("simulation halted after a failed tick")

// MetricsRecorder receives per-tick measurements. observability.TickCollector
// implements it.
type MetricsRecorder interface {
	ObserveTick(d time.Duration, created, moved, removed int)
	SetPopulation(category string, n int)
	IncDrainErrors()
}

type noopRecorder struct{}

func (noopRecorder) ObserveTick(time.Duration, int, int, int) {}
func (noopRecorder) SetPopulation(string, int)                {}
func (noopRecorder) IncDrainErrors()                          {}

// Option configures a Simulation.
type Option func(*Simulation)

func WithLogger(log logging.Logger) Option {
	return func(s *Simulation) {
		if log != nil {
			s.log = log
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Simulation) {
		if tp != nil {
			s.tracer = tp.Tracer(instrumentationName)
		}
	}
}

func WithMetrics(m MetricsRecorder) Option {
	return func(s *Simulation) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRand replaces the seeded random source used for seeding and spawning.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulation) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// Simulation runs the doofus state machine on a pen storage: doofuses pair
// with food, walk to it, eat it, and food respawns up to the team cap.
type Simulation struct {
	sto  pen.Storage
	cats Categories
	cfg  Config

	spawn   *Spawn
	seek    *SeekFood
	travel  *Travel
	consume *Consume

	rng     *rand.Rand
	log     logging.Logger
	tracer  trace.Tracer
	metrics MetricsRecorder
	ticks   uint64
	failed  error
}

// New registers the simulation categories on sto.
func New(sto pen.Storage, cfg Config, opts ...Option) (*Simulation, error) {
	s := &Simulation{
		sto:     sto,
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		log:     logging.Noop(),
		tracer:  otel.GetTracerProvider().Tracer(instrumentationName),
		metrics: noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}

	cats, err := RegisterCategories(sto, cfg)
	if err != nil {
		return nil, err
	}
	s.cats = cats
	s.spawn = NewSpawn(cats, cfg, s.rng)
	s.seek = NewSeekFood(cats)
	s.travel = NewTravel(cfg)
	s.consume = NewConsume(cats)
	return s, nil
}

func (s *Simulation) Categories() Categories {
	return s.cats
}

func (s *Simulation) Storage() pen.Storage {
	return s.sto
}

func (s *Simulation) Ticks() uint64 {
	return s.ticks
}

// Seed creates the initial doofus population.
func (s *Simulation) Seed(ctx context.Context) error {
	if err := Seed(s.sto, s.cats, s.cfg, s.rng); err != nil {
		return err
	}
	s.log.Info(ctx, "seeded simulation",
		logging.Int("doofuses_per_team", s.cfg.DoofusesPerTeam),
		logging.Int("max_food_per_team", s.cfg.MaxFoodPerTeam),
	)
	s.recordPopulation()
	return nil
}

// Step runs one tick of dt seconds: spawn, seek and travel run in parallel,
// consume runs once travel has joined, then the queued mutations are drained.
//
// Any returned error is fatal. The storage may still be locked or hold the
// failed tick's queued mutations, so it must not be used again, and every
// later Step returns ErrHalted wrapping the first failure.
func (s *Simulation) Step(ctx context.Context, dt float64) (stats pen.DrainStats, err error) {
	if s.failed != nil {
		return pen.DrainStats{}, fmt.Errorf("%w: %w", ErrHalted, s.failed)
	}
	s.ticks++
	ctx, log := logging.WithTickLogger(ctx, s.log, s.ticks)
	ctx, span := s.tracer.Start(ctx, "sim.tick", trace.WithAttributes(
		attribute.Int64("tick", int64(s.ticks)),
		attribute.Float64("dt", dt),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			jp, ok := r.(*pen.JobPanic)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("tick %d: %w", s.ticks, jp)
		}
		if err != nil {
			s.failed = err
			s.metrics.IncDrainErrors()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error(ctx, "tick failed", logging.Err(err))
		}
	}()

	start := time.Now()
	tick := s.sto.BeginTick()

	_, phase := s.tracer.Start(ctx, "sim.schedule")
	s.spawn.Execute(tick)
	s.seek.Execute(tick)
	travel := s.travel.Execute(tick, dt)
	phase.End()

	_, phase = s.tracer.Start(ctx, "sim.travel.join")
	tick.Join(travel)
	phase.End()

	s.consume.Execute(tick)

	_, phase = s.tracer.Start(ctx, "sim.drain")
	stats, err = s.sto.EndTick(tick)
	phase.SetAttributes(
		attribute.Int("created", stats.Created),
		attribute.Int("moved", stats.Moved),
		attribute.Int("removed", stats.Removed),
	)
	phase.End()
	if err != nil {
		return stats, fmt.Errorf("tick %d: %w", s.ticks, err)
	}

	elapsed := time.Since(start)
	s.metrics.ObserveTick(elapsed, stats.Created, stats.Moved, stats.Removed)
	s.recordPopulation()
	log.Debug(ctx, "tick complete",
		logging.Duration("elapsed", elapsed),
		logging.Int("created", stats.Created),
		logging.Int("moved", stats.Moved),
		logging.Int("removed", stats.Removed),
	)
	return stats, nil
}

// Run steps the simulation every TickRate until ctx is done or n ticks have
// run; n <= 0 means no limit.
func (s *Simulation) Run(ctx context.Context, n int) error {
	if s.cfg.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %s", s.cfg.TickRate)
	}
	ticker := time.NewTicker(s.cfg.TickRate)
	defer ticker.Stop()

	dt := s.cfg.TickRate.Seconds()
	for i := 0; n <= 0 || i < n; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if _, err := s.Step(ctx, dt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) recordPopulation() {
	for _, cat := range s.cats.All() {
		s.metrics.SetPopulation(s.sto.Batch(cat).Name(), s.sto.Count(cat))
	}
}
