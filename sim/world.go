package sim

import (
	"fmt"

	"github.com/TheBitDrifter/pen"
)

// Kind, team and activity tags. Every category is one tag from each axis.
var (
	DoofusTag = pen.FactoryNewTag("doofus")
	FoodTag   = pen.FactoryNewTag("food")

	RedTag  = pen.FactoryNewTag("red")
	BlueTag = pen.FactoryNewTag("blue")

	// Food in the Eating activity is "eaten": paired with a doofus.
	NotEatingTag = pen.FactoryNewTag("noteating")
	EatingTag    = pen.FactoryNewTag("eating")
)

type Team int

const (
	Red Team = iota
	Blue
)

// Teams lists every team in category registration order.
var Teams = [...]Team{Red, Blue}

func (t Team) Tag() pen.Tag {
	if t == Blue {
		return BlueTag
	}
	return RedTag
}

func (t Team) String() string {
	return t.Tag().Name()
}

// teamOf reports which team a batch belongs to.
func teamOf(b pen.Batch) Team {
	if b.Has(BlueTag) {
		return Blue
	}
	return Red
}

// Categories holds the eight simulation categories, indexed by team.
type Categories struct {
	DoofusNotEating [2]pen.Category
	DoofusEating    [2]pen.Category
	FoodNotEaten    [2]pen.Category
	FoodEaten       [2]pen.Category
}

// All returns every category in registration order.
func (c Categories) All() []pen.Category {
	all := make([]pen.Category, 0, 8)
	for _, team := range Teams {
		all = append(all, c.DoofusNotEating[team], c.DoofusEating[team])
	}
	for _, team := range Teams {
		all = append(all, c.FoodNotEaten[team], c.FoodEaten[team])
	}
	return all
}

// RegisterCategories registers kind × team × activity on sto. Doofus
// categories are bounded by DoofusesPerTeam and food categories by
// MaxFoodPerTeam.
func RegisterCategories(sto pen.Storage, cfg Config) (Categories, error) {
	var cats Categories
	combos := pen.CrossProduct(
		[]pen.Tag{DoofusTag, FoodTag},
		[]pen.Tag{RedTag, BlueTag},
		[]pen.Tag{NotEatingTag, EatingTag},
	)
	for _, tags := range combos {
		kind, team, activity := tags[0], tags[1], tags[2]

		builder := pen.NewCategoryBuilder(sto).WithTags(tags...)
		if kind == DoofusTag {
			builder.WithComponents(doofusComponents...).WithCapacity(cfg.DoofusesPerTeam)
		} else {
			builder.WithComponents(foodComponents...).WithCapacity(cfg.MaxFoodPerTeam)
		}
		cat, err := builder.Build()
		if err != nil {
			return Categories{}, fmt.Errorf("register category %v: %w", tags, err)
		}

		t := Red
		if team == BlueTag {
			t = Blue
		}
		switch {
		case kind == DoofusTag && activity == NotEatingTag:
			cats.DoofusNotEating[t] = cat
		case kind == DoofusTag:
			cats.DoofusEating[t] = cat
		case activity == NotEatingTag:
			cats.FoodNotEaten[t] = cat
		default:
			cats.FoodEaten[t] = cat
		}
	}
	return cats, nil
}
