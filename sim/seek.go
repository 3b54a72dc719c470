package sim

import (
	"fmt"

	"github.com/TheBitDrifter/pen"
)

// SeekFood pairs idle doofuses with uneaten food of the same team. Pairing is
// positional: the i-th idle doofus takes the i-th uneaten food in category
// row order, with no distance search.
type SeekFood struct {
	cats     Categories
	food     [2]pen.QueryNode
	doofuses [2]pen.QueryNode
}

func NewSeekFood(cats Categories) *SeekFood {
	s := &SeekFood{cats: cats}
	for _, team := range Teams {
		s.food[team] = pen.Factory.NewQuery().And(FoodTag, team.Tag(), NotEatingTag)
		s.doofuses[team] = pen.Factory.NewQuery().And(DoofusTag, team.Tag(), NotEatingTag)
	}
	return s
}

func (s *SeekFood) Execute(tick *pen.Tick) pen.JobHandle {
	var handles []pen.JobHandle
	for _, team := range Teams {
		handles = append(handles, s.executeForTeam(tick, team))
	}
	return pen.Combine(handles...)
}

func (s *SeekFood) executeForTeam(tick *pen.Tick, team Team) pen.JobHandle {
	sto := tick.Storage()
	food := sto.Matching(s.food[team])
	doofuses := sto.Matching(s.doofuses[team])

	var handles []pen.JobHandle
	for i := 0; i < min(len(food), len(doofuses)); i++ {
		foodBatch, doofusBatch := food[i], doofuses[i]
		n := min(foodBatch.Len(), doofusBatch.Len())
		handles = append(handles, tick.ScheduleRange(doofusBatch, n, s.pair(team, foodBatch)))
	}
	return pen.Combine(handles...)
}

func (s *SeekFood) pair(team Team, food pen.Batch) func(pen.Chunk) {
	eating := s.cats.DoofusEating[team]
	eaten := s.cats.FoodEaten[team]
	return func(c pen.Chunk) {
		meals := MealComponent.Column(c.Batch)
		foodPositions := PositionComponent.Column(food)
		for i := c.Start; i < c.End; i++ {
			meal := &meals[i]
			if meal.Target != pen.InvalidReference {
				panic(fmt.Sprintf("sim: idle doofus %v already targets %d", c.Batch.Handle(i), meal.Target))
			}
			meal.Target = food.Reference(i)
			meal.Destination = foodPositions[i].Vec3
			meal.Arrived = false

			c.EnqueueMove(c.Batch.Handle(i), eating)
			c.EnqueueMove(food.Handle(i), eaten)
		}
	}
}
