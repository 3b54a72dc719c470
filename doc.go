/*
Package pen provides a grouped component store for data-parallel simulations.

Entities live in categories: fixed conjunctions of tags such as
{Doofus, Red, Eating}. Each category owns one dense table with a column per
component, so a batch of rows can be processed in parallel without chasing
pointers.

Core Concepts:

  - Category: a registered tag combination with its own dense table.
  - Handle: (id, category) address of an entity, stale after it moves.
  - Reference: permanent entity identity, resolved through the reference table.
  - Tick: a locked window in which jobs run on the dispatcher and structural
    changes are queued, then applied once by EndTick.

Basic Usage:

	schema := table.Factory.NewSchema()
	storage := pen.Factory.NewStorage(schema)
	defer storage.Close()

	position := pen.FactoryNewComponent[Position]()
	red := pen.FactoryNewTag("red")
	idle := pen.FactoryNewTag("idle")
	busy := pen.FactoryNewTag("busy")

	idleRed, _ := pen.NewCategoryBuilder(storage).WithTags(red, idle).WithComponents(position).Build()
	busyRed, _ := pen.NewCategoryBuilder(storage).WithTags(red, busy).WithComponents(position).Build()

	storage.NewEntity(idleRed, position.With(Position{X: 1}))

	tick := storage.BeginTick()
	tick.Schedule(storage.Matching(pen.Factory.NewQuery().And(red, idle)), func(c pen.Chunk) {
		positions := position.Column(c.Batch)
		for i := c.Start; i < c.End; i++ {
			positions[i].X++
			c.EnqueueMove(c.Batch.Handle(i), busyRed)
		}
	})
	storage.EndTick(tick)
*/
package pen
