package sim

import "github.com/TheBitDrifter/pen"

// Travel walks eating doofuses toward their meal, ignoring height. A doofus
// within the arrival threshold stops and is marked arrived for Consume.
type Travel struct {
	threshold float64
	eating    pen.QueryNode
}

func NewTravel(cfg Config) *Travel {
	return &Travel{
		threshold: cfg.ArrivalThreshold,
		eating:    pen.Factory.NewQuery().And(DoofusTag, EatingTag),
	}
}

// Execute schedules one travel step of dt seconds.
func (t *Travel) Execute(tick *pen.Tick, dt float64) pen.JobHandle {
	return tick.Schedule(tick.Storage().Matching(t.eating), func(c pen.Chunk) {
		positions := PositionComponent.Column(c.Batch)
		velocities := VelocityComponent.Column(c.Batch)
		speeds := SpeedComponent.Column(c.Batch)
		meals := MealComponent.Column(c.Batch)

		for i := c.Start; i < c.End; i++ {
			delta := meals[i].Destination.Sub(positions[i].Vec3).Flat()
			if delta.LenSq() < t.threshold {
				velocities[i].Vec3 = Vec3{}
				meals[i].Arrived = true
				continue
			}
			velocities[i].Vec3 = delta
			positions[i].Vec3 = positions[i].Add(delta.Scale(speeds[i].Value * dt))
		}
	})
}
