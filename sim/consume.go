package sim

import (
	"fmt"

	"github.com/TheBitDrifter/pen"
)

// Consume finishes every arrived doofus's meal: the food is removed and the
// doofus goes back to NotEating.
type Consume struct {
	cats   Categories
	eating pen.QueryNode
}

func NewConsume(cats Categories) *Consume {
	return &Consume{
		cats:   cats,
		eating: pen.Factory.NewQuery().And(DoofusTag, EatingTag),
	}
}

// Execute panics inside the job if a meal reference dangles; food is only
// removed here, so that is a broken store invariant.
func (s *Consume) Execute(tick *pen.Tick) pen.JobHandle {
	sto := tick.Storage()
	return tick.Schedule(sto.Matching(s.eating), func(c pen.Chunk) {
		meals := MealComponent.Column(c.Batch)
		idle := s.cats.DoofusNotEating[teamOf(c.Batch)]

		for i := c.Start; i < c.End; i++ {
			meal := &meals[i]
			if !meal.Arrived {
				continue
			}
			food, err := sto.Resolve(meal.Target)
			if err != nil {
				panic(fmt.Errorf("sim: meal of doofus %v: %w", c.Batch.Handle(i), err))
			}
			c.EnqueueRemove(food)
			*meal = Meal{}
			c.EnqueueMove(c.Batch.Handle(i), idle)
		}
	})
}
