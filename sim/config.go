package sim

import "time"

// Config holds the tunables of the doofus simulation.
type Config struct {
	DoofusesPerTeam int
	// MaxFoodPerTeam caps NotEaten plus Eaten food of one team.
	MaxFoodPerTeam   int
	SpawnRadius      float64
	FoodSize         float64
	DoofusHeight     float64
	ArrivalThreshold float64 // squared distance
	Seed             uint64
	TickRate         time.Duration
}

func DefaultConfig() Config {
	const doofuses = 1000
	return Config{
		DoofusesPerTeam:  doofuses,
		MaxFoodPerTeam:   doofuses * 3 / 2,
		SpawnRadius:      100,
		FoodSize:         0.5,
		DoofusHeight:     1.8,
		ArrivalThreshold: 2,
		Seed:             1,
		TickRate:         time.Second / 60,
	}
}

// WithDoofuses returns c with n doofuses per team and the food cap scaled to
// match.
func (c Config) WithDoofuses(n int) Config {
	c.DoofusesPerTeam = n
	c.MaxFoodPerTeam = n * 3 / 2
	return c
}
