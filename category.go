package pen

import (
	"fmt"
	"math"

	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
)

// Category identifies one registered tag combination and its dense table.
type Category uint32

// NoCategory is returned where no category applies.
const NoCategory Category = math.MaxUint32

// Tag is one orthogonal label (a team, an activity, a kind). Categories are
// conjunctions of tags.
type Tag struct {
	bit  uint32
	name string
}

func (t Tag) Name() string {
	return t.name
}

func (t Tag) String() string {
	return t.name
}

// Group is the read-only view of a category used by query evaluation.
type Group interface {
	ID() Category
	Name() string
	TagMask() mask.Mask
	ComponentMask() mask.Mask
	Table() table.Table
}

// Handle addresses an entity inside the category it currently occupies. It
// goes stale as soon as the entity moves or is removed.
type Handle struct {
	ID       uint32
	Category Category
}

// Reference returns the permanent reference of the addressed entity.
func (h Handle) Reference() Reference {
	return Reference(h.ID)
}

func (h Handle) String() string {
	return fmt.Sprintf("(%d, category %d)", h.ID, h.Category)
}

// CrossProduct enumerates every combination picking one tag per axis, in
// axis order, with the last axis varying fastest.
func CrossProduct(axes ...[]Tag) [][]Tag {
	combos := [][]Tag{{}}
	for _, axis := range axes {
		next := make([][]Tag, 0, len(combos)*len(axis))
		for _, prefix := range combos {
			for _, t := range axis {
				combo := make([]Tag, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, t))
			}
		}
		combos = next
	}
	return combos
}

// CategoryBuilder registers a category against a storage.
type CategoryBuilder struct {
	sto        Storage
	tags       []Tag
	components []Component
	capacity   int
}

func NewCategoryBuilder(sto Storage) *CategoryBuilder {
	return &CategoryBuilder{sto: sto}
}

func (b *CategoryBuilder) WithTags(tags ...Tag) *CategoryBuilder {
	b.tags = append(b.tags, tags...)
	return b
}

func (b *CategoryBuilder) WithComponents(components ...Component) *CategoryBuilder {
	b.components = append(b.components, components...)
	return b
}

// WithCapacity bounds the category; zero means unbounded.
func (b *CategoryBuilder) WithCapacity(n int) *CategoryBuilder {
	b.capacity = n
	return b
}

func (b *CategoryBuilder) Build() (Category, error) {
	if len(b.tags) == 0 {
		return NoCategory, fmt.Errorf("category requires at least one tag")
	}
	return b.sto.(*storage).registerCategory(b.tags, b.components, b.capacity)
}

// categoryRegistry indexes categories by tag mask and by name.
type categoryRegistry struct {
	byMask      map[mask.Mask]Category
	byName      map[string]Category
	maxCapacity int
}

func newCategoryRegistry(maxCapacity int) *categoryRegistry {
	return &categoryRegistry{
		byMask:      make(map[mask.Mask]Category),
		byName:      make(map[string]Category),
		maxCapacity: maxCapacity,
	}
}

// reserve checks that a category with tag mask m may still be registered.
func (r *categoryRegistry) reserve(m mask.Mask) error {
	if existing, ok := r.byMask[m]; ok {
		return CategoryExistsError{Category: existing}
	}
	if len(r.byMask) >= r.maxCapacity {
		return CapacityExceededError{Category: NoCategory, Capacity: r.maxCapacity}
	}
	return nil
}

func (r *categoryRegistry) register(g *group) {
	r.byMask[g.tagMask] = g.id
	r.byName[g.name] = g.id
}

func (r *categoryRegistry) lookup(m mask.Mask) (Category, bool) {
	cat, ok := r.byMask[m]
	if !ok {
		return NoCategory, false
	}
	return cat, true
}

func (r *categoryRegistry) lookupName(name string) (Category, bool) {
	cat, ok := r.byName[name]
	if !ok {
		return NoCategory, false
	}
	return cat, true
}
