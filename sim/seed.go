package sim

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/TheBitDrifter/pen"
)

// Seed creates the initial population: DoofusesPerTeam idle doofuses per
// team scattered over the spawn disc. It must run outside a tick.
func Seed(sto pen.Storage, cats Categories, cfg Config, rng *rand.Rand) error {
	for _, team := range Teams {
		for i := 0; i < cfg.DoofusesPerTeam; i++ {
			theta := rng.Float64() * 2 * math.Pi
			radius := rng.Float64() * cfg.SpawnRadius
			_, err := sto.NewEntity(cats.DoofusNotEating[team],
				PositionComponent.With(Position{onDisc(theta, radius, 0.5*cfg.FoodSize)}),
				RotationComponent.With(Identity),
				ScaleComponent.With(Scale{Vec3{0.8, cfg.DoofusHeight, 0.8}}),
				VelocityComponent.With(Velocity{Vec3{1, 0, 1}}),
				SpeedComponent.With(Speed{Value: 0.1 + rng.Float64()}),
				MealComponent.With(Meal{}),
			)
			if err != nil {
				return fmt.Errorf("seed %s doofus %d: %w", team, i, err)
			}
		}
	}
	return nil
}
