package sim

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/TheBitDrifter/pen"
	"github.com/TheBitDrifter/table"
)

func newWorld(t *testing.T, cfg Config) (pen.Storage, Categories) {
	t.Helper()
	sto := pen.Factory.NewStorage(table.Factory.NewSchema())
	t.Cleanup(sto.Close)
	cats, err := RegisterCategories(sto, cfg)
	if err != nil {
		t.Fatalf("RegisterCategories() error = %v", err)
	}
	return sto, cats
}

func addDoofus(t *testing.T, sto pen.Storage, cat pen.Category, pos Vec3, meal Meal) pen.Reference {
	t.Helper()
	ref, err := sto.NewEntity(cat,
		PositionComponent.With(Position{pos}),
		SpeedComponent.With(Speed{Value: 1}),
		MealComponent.With(meal),
	)
	if err != nil {
		t.Fatalf("NewEntity(doofus) error = %v", err)
	}
	return ref
}

func addFood(t *testing.T, sto pen.Storage, cat pen.Category, pos Vec3) pen.Reference {
	t.Helper()
	ref, err := sto.NewEntity(cat, PositionComponent.With(Position{pos}))
	if err != nil {
		t.Fatalf("NewEntity(food) error = %v", err)
	}
	return ref
}

func category(t *testing.T, sto pen.Storage, ref pen.Reference) pen.Category {
	t.Helper()
	h, err := sto.Resolve(ref)
	if err != nil {
		t.Fatalf("Resolve(%d) error = %v", ref, err)
	}
	return h.Category
}

func TestRegisterCategories(t *testing.T) {
	sto, cats := newWorld(t, DefaultConfig())

	all := cats.All()
	if len(all) != 8 {
		t.Fatalf("All() returned %d categories, want 8", len(all))
	}
	seen := make(map[pen.Category]bool)
	for _, cat := range all {
		if seen[cat] {
			t.Errorf("category %d registered twice", cat)
		}
		seen[cat] = true
	}

	tests := []struct {
		name string
		tags []pen.Tag
		want pen.Category
	}{
		{"idle blue doofus", []pen.Tag{DoofusTag, BlueTag, NotEatingTag}, cats.DoofusNotEating[Blue]},
		{"eating red doofus", []pen.Tag{EatingTag, DoofusTag, RedTag}, cats.DoofusEating[Red]},
		{"eaten blue food", []pen.Tag{FoodTag, BlueTag, EatingTag}, cats.FoodEaten[Blue]},
		{"uneaten red food", []pen.Tag{FoodTag, RedTag, NotEatingTag}, cats.FoodNotEaten[Red]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := sto.CategoryFor(tt.tags...); !ok || got != tt.want {
				t.Errorf("CategoryFor() = %d, %v, want %d", got, ok, tt.want)
			}
		})
	}

	if got := sto.Batch(cats.FoodEaten[Red]).Name(); got != "food/red/eating" {
		t.Errorf("Name() = %q, want food/red/eating", got)
	}
	eaten := sto.Batch(cats.FoodEaten[Red])
	if !PositionComponent.Check(eaten) || MealComponent.Check(eaten) {
		t.Errorf("food categories carry the wrong components")
	}
}

func TestSeekFoodPairsPositionally(t *testing.T) {
	sto, cats := newWorld(t, DefaultConfig().WithDoofuses(10))

	var doofuses, food []pen.Reference
	for i := 0; i < 3; i++ {
		doofuses = append(doofuses, addDoofus(t, sto, cats.DoofusNotEating[Red], Vec3{}, Meal{}))
	}
	for i := 0; i < 5; i++ {
		food = append(food, addFood(t, sto, cats.FoodNotEaten[Red], Vec3{X: float64(i), Z: 1}))
	}
	blueFood := addFood(t, sto, cats.FoodNotEaten[Blue], Vec3{})

	tick := sto.BeginTick()
	NewSeekFood(cats).Execute(tick)
	stats, err := sto.EndTick(tick)
	if err != nil {
		t.Fatalf("EndTick() error = %v", err)
	}

	if stats.Moved != 6 {
		t.Errorf("DrainStats.Moved = %d, want 6", stats.Moved)
	}
	counts := []struct {
		name string
		cat  pen.Category
		want int
	}{
		{"eating doofuses", cats.DoofusEating[Red], 3},
		{"idle doofuses", cats.DoofusNotEating[Red], 0},
		{"eaten food", cats.FoodEaten[Red], 3},
		{"uneaten food", cats.FoodNotEaten[Red], 2},
		{"blue food", cats.FoodNotEaten[Blue], 1},
	}
	for _, c := range counts {
		if got := sto.Count(c.cat); got != c.want {
			t.Errorf("%s: Count() = %d, want %d", c.name, got, c.want)
		}
	}

	for i, ref := range doofuses {
		meal, err := MealComponent.GetFromReference(sto, ref)
		if err != nil {
			t.Fatalf("GetFromReference() error = %v", err)
		}
		if meal.Target != food[i] {
			t.Errorf("doofus %d targets %d, want food %d", i, meal.Target, food[i])
		}
		if want := (Vec3{X: float64(i), Z: 1}); meal.Destination != want {
			t.Errorf("doofus %d destination = %+v, want %+v", i, meal.Destination, want)
		}
		if category(t, sto, food[i]) != cats.FoodEaten[Red] {
			t.Errorf("paired food %d not moved to eaten", food[i])
		}
	}
	for _, ref := range food[3:] {
		if category(t, sto, ref) != cats.FoodNotEaten[Red] {
			t.Errorf("unpaired food %d left NotEaten", ref)
		}
	}
	if category(t, sto, blueFood) != cats.FoodNotEaten[Blue] {
		t.Errorf("blue food paired with a red doofus")
	}
}

func TestSeekFoodRejectsPairedIdleDoofus(t *testing.T) {
	sto, cats := newWorld(t, DefaultConfig().WithDoofuses(10))
	addDoofus(t, sto, cats.DoofusNotEating[Blue], Vec3{}, Meal{Target: 42})
	addFood(t, sto, cats.FoodNotEaten[Blue], Vec3{})

	tick := sto.BeginTick()
	NewSeekFood(cats).Execute(tick)

	defer func() {
		if _, ok := recover().(*pen.JobPanic); !ok {
			t.Errorf("EndTick() did not re-raise the pairing panic")
		}
	}()
	sto.EndTick(tick)
}

func TestTravel(t *testing.T) {
	cfg := DefaultConfig().WithDoofuses(10)
	sto, cats := newWorld(t, cfg)

	tests := []struct {
		name        string
		start, dest Vec3
		wantArrived bool
		wantPos     Vec3
	}{
		{"Far away moves", Vec3{}, Vec3{X: 10}, false, Vec3{X: 1}},
		{"Height is ignored", Vec3{}, Vec3{X: 1, Y: 50}, true, Vec3{}},
		{"Inside threshold stops", Vec3{X: 3, Z: 3}, Vec3{X: 4, Z: 3.5}, true, Vec3{X: 3, Z: 3}},
	}
	refs := make([]pen.Reference, len(tests))
	for i, tt := range tests {
		refs[i] = addDoofus(t, sto, cats.DoofusEating[Red], tt.start, Meal{Target: 1, Destination: tt.dest})
	}

	tick := sto.BeginTick()
	tick.Join(NewTravel(cfg).Execute(tick, 0.1))
	if _, err := sto.EndTick(tick); err != nil {
		t.Fatalf("EndTick() error = %v", err)
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, _ := PositionComponent.GetFromReference(sto, refs[i])
			vel, _ := VelocityComponent.GetFromReference(sto, refs[i])
			meal, _ := MealComponent.GetFromReference(sto, refs[i])

			if meal.Arrived != tt.wantArrived {
				t.Errorf("Arrived = %v, want %v", meal.Arrived, tt.wantArrived)
			}
			if tt.wantArrived && vel.Vec3 != (Vec3{}) {
				t.Errorf("velocity = %+v, want zero on arrival", vel.Vec3)
			}
			if d := pos.Sub(tt.wantPos).LenSq(); d > 1e-12 {
				t.Errorf("position = %+v, want %+v", pos.Vec3, tt.wantPos)
			}
		})
	}
}

// TestConsumeScenario walks one paired doofus one unit from its food through
// travel and consume in a single tick.
func TestConsumeScenario(t *testing.T) {
	cfg := DefaultConfig().WithDoofuses(10)
	sto, cats := newWorld(t, cfg)

	food := addFood(t, sto, cats.FoodEaten[Red], Vec3{X: 1})
	doofus := addDoofus(t, sto, cats.DoofusEating[Red], Vec3{}, Meal{Target: food, Destination: Vec3{X: 1}})
	other := addFood(t, sto, cats.FoodEaten[Red], Vec3{X: 50})
	walker := addDoofus(t, sto, cats.DoofusEating[Red], Vec3{}, Meal{Target: other, Destination: Vec3{X: 50}})
	eatingBefore := sto.Count(cats.DoofusEating[Red])

	tick := sto.BeginTick()
	tick.Join(NewTravel(cfg).Execute(tick, 0.01))
	NewConsume(cats).Execute(tick)
	stats, err := sto.EndTick(tick)
	if err != nil {
		t.Fatalf("EndTick() error = %v", err)
	}

	if stats.Removed != 1 || stats.Moved != 1 {
		t.Errorf("DrainStats = %+v, want one removal and one move", stats)
	}
	if got := sto.Count(cats.DoofusEating[Red]); got != eatingBefore-1 {
		t.Errorf("Count(eating) = %d, want %d", got, eatingBefore-1)
	}
	if category(t, sto, doofus) != cats.DoofusNotEating[Red] {
		t.Errorf("fed doofus did not return to NotEating")
	}
	if sto.Valid(food) {
		t.Errorf("eaten food %d still resolves", food)
	}
	for b := range sto.Batches(pen.Factory.NewQuery().And(FoodTag)) {
		for _, ref := range b.References() {
			if ref == food {
				t.Errorf("eaten food %d still in %s", food, b.Name())
			}
		}
	}

	meal, _ := MealComponent.GetFromReference(sto, doofus)
	if *meal != (Meal{}) {
		t.Errorf("meal not cleared: %+v", *meal)
	}
	vel, _ := VelocityComponent.GetFromReference(sto, doofus)
	if vel.Vec3 != (Vec3{}) {
		t.Errorf("velocity = %+v, want zero", vel.Vec3)
	}

	if category(t, sto, walker) != cats.DoofusEating[Red] || !sto.Valid(other) {
		t.Errorf("doofus still walking was consumed")
	}
}

func TestConsumeDanglingMealIsFatal(t *testing.T) {
	sto, cats := newWorld(t, DefaultConfig().WithDoofuses(10))
	food := addFood(t, sto, cats.FoodEaten[Blue], Vec3{})
	addDoofus(t, sto, cats.DoofusEating[Blue], Vec3{}, Meal{Target: food, Arrived: true})

	h, _ := sto.Resolve(food)
	if err := sto.RemoveEntity(h); err != nil {
		t.Fatalf("RemoveEntity() error = %v", err)
	}

	tick := sto.BeginTick()
	NewConsume(cats).Execute(tick)

	defer func() {
		jp, ok := recover().(*pen.JobPanic)
		if !ok {
			t.Fatalf("EndTick() did not re-raise the consume panic")
		}
		cause, _ := jp.Value.(error)
		var dangling pen.DanglingReferenceError
		if !errors.As(cause, &dangling) || dangling.Reference != food {
			t.Errorf("panic value = %v, want DanglingReferenceError{%d}", jp.Value, food)
		}
	}()
	sto.EndTick(tick)
}

func TestSpawnScenario(t *testing.T) {
	cfg := DefaultConfig().WithDoofuses(10)
	cfg.MaxFoodPerTeam = 100
	sto, cats := newWorld(t, cfg)

	for i := 0; i < 90; i++ {
		addFood(t, sto, cats.FoodNotEaten[Red], Vec3{})
	}
	for i := 0; i < 7; i++ {
		addFood(t, sto, cats.FoodEaten[Red], Vec3{})
	}

	spawn := NewSpawn(cats, cfg, rand.New(rand.NewPCG(1, 2)))

	tick := sto.BeginTick()
	spawn.ExecuteForTeam(tick, Red)
	stats, err := sto.EndTick(tick)
	if err != nil {
		t.Fatalf("EndTick() error = %v", err)
	}
	if stats.Created != 3 {
		t.Errorf("DrainStats.Created = %d, want 3", stats.Created)
	}
	if got := sto.Count(cats.FoodNotEaten[Red]) + sto.Count(cats.FoodEaten[Red]); got != 100 {
		t.Errorf("red food = %d, want 100", got)
	}
	if sto.Count(cats.FoodNotEaten[Blue]) != 0 {
		t.Errorf("spawn for red created blue food")
	}

	positions := PositionComponent.Column(sto.Batch(cats.FoodNotEaten[Red]))
	scales := ScaleComponent.Column(sto.Batch(cats.FoodNotEaten[Red]))
	for i := 90; i < len(positions); i++ {
		p := positions[i]
		if p.Y != 0.5*cfg.FoodSize || p.Flat().LenSq() > cfg.SpawnRadius*cfg.SpawnRadius {
			t.Errorf("spawned food at %+v outside the spawn disc", p.Vec3)
		}
		if scales[i].Vec3 != (Vec3{cfg.FoodSize, cfg.FoodSize, cfg.FoodSize}) {
			t.Errorf("spawned food scale = %+v", scales[i].Vec3)
		}
	}

	tick = sto.BeginTick()
	spawn.ExecuteForTeam(tick, Red)
	stats, _ = sto.EndTick(tick)
	if stats.Created != 0 {
		t.Errorf("spawn at cap created %d food", stats.Created)
	}
}

func TestSpawnPicksBothTeams(t *testing.T) {
	cfg := DefaultConfig().WithDoofuses(10)
	sto, cats := newWorld(t, cfg)
	spawn := NewSpawn(cats, cfg, rand.New(rand.NewPCG(7, 7)))

	for i := 0; i < 64; i++ {
		tick := sto.BeginTick()
		spawn.Execute(tick)
		if _, err := sto.EndTick(tick); err != nil {
			t.Fatalf("EndTick() error = %v", err)
		}
	}
	for _, team := range Teams {
		if got := sto.Count(cats.FoodNotEaten[team]); got != cfg.MaxFoodPerTeam {
			t.Errorf("%s food = %d, want %d", team, got, cfg.MaxFoodPerTeam)
		}
	}
}

func TestSeed(t *testing.T) {
	cfg := DefaultConfig().WithDoofuses(25)
	sto, cats := newWorld(t, cfg)

	if err := Seed(sto, cats, cfg, rand.New(rand.NewPCG(3, 4))); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	for _, team := range Teams {
		b := sto.Batch(cats.DoofusNotEating[team])
		if b.Len() != 25 {
			t.Fatalf("%s doofuses = %d, want 25", team, b.Len())
		}
		for i, s := range SpeedComponent.Column(b) {
			if s.Value < 0.1 || s.Value >= 1.1 {
				t.Errorf("doofus %d speed = %v", i, s.Value)
			}
		}
		for i, sc := range ScaleComponent.Column(b) {
			if sc.Y != cfg.DoofusHeight {
				t.Errorf("doofus %d height = %v", i, sc.Y)
			}
		}
		for i, p := range PositionComponent.Column(b) {
			if math.Hypot(p.X, p.Z) > cfg.SpawnRadius {
				t.Errorf("doofus %d seeded outside radius: %+v", i, p.Vec3)
			}
		}
	}

	var capErr pen.CapacityExceededError
	if err := Seed(sto, cats, cfg, rand.New(rand.NewPCG(3, 4))); !errors.As(err, &capErr) {
		t.Errorf("second Seed() error = %v, want CapacityExceededError", err)
	}
}
