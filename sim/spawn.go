package sim

import (
	"math"
	"math/rand/v2"

	"github.com/TheBitDrifter/pen"
)

// Spawn tops up one randomly chosen team's food to MaxFoodPerTeam each tick.
type Spawn struct {
	cats Categories
	cfg  Config
	rng  *rand.Rand
}

// NewSpawn draws team choices and job seeds from rng, which is only used on
// the scheduling goroutine.
func NewSpawn(cats Categories, cfg Config, rng *rand.Rand) *Spawn {
	return &Spawn{cats: cats, cfg: cfg, rng: rng}
}

func (s *Spawn) Execute(tick *pen.Tick) pen.JobHandle {
	return s.ExecuteForTeam(tick, Teams[s.rng.IntN(len(Teams))])
}

// ExecuteForTeam enqueues one creation per missing food of team. Food that is
// paired but not yet consumed still counts against the cap.
func (s *Spawn) ExecuteForTeam(tick *pen.Tick, team Team) pen.JobHandle {
	sto := tick.Storage()
	deficit := s.cfg.MaxFoodPerTeam - sto.Count(s.cats.FoodNotEaten[team]) - sto.Count(s.cats.FoodEaten[team])
	if deficit <= 0 {
		return pen.JobHandle{}
	}

	seed := s.rng.Uint64()
	dest := s.cats.FoodNotEaten[team]
	size := s.cfg.FoodSize
	radius := s.cfg.SpawnRadius
	return tick.ScheduleN(deficit, func(c pen.Chunk) {
		rng := rand.New(rand.NewPCG(seed, uint64(c.Start)))
		for i := c.Start; i < c.End; i++ {
			pos := onDisc(rng.Float64()*2*math.Pi, rng.Float64()*radius, 0.5*size)
			c.EnqueueCreate(dest,
				PositionComponent.With(Position{pos}),
				RotationComponent.With(Identity),
				ScaleComponent.With(Scale{Vec3{size, size, size}}),
			)
		}
	})
}
