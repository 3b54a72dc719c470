package pen

import (
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
	iter_util "github.com/TheBitDrifter/util/iter"
)

var _ Storage = &storage{}

type storage struct {
	locked     atomic.Bool
	schema     table.Schema
	entryIndex table.EntryIndex
	groups     []*group
	registry   *categoryRegistry
	refs       *referenceTable
	queue      *mutationQueue
	dispatcher *Dispatcher
}

func newStorage(schema table.Schema) Storage {
	queue := newMutationQueue(Config.Workers())
	return &storage{
		schema:     schema,
		entryIndex: table.Factory.NewEntryIndex(),
		registry:   newCategoryRegistry(Config.maxCategories),
		refs:       newReferenceTable(Config.referenceCapacity),
		queue:      queue,
		dispatcher: newDispatcher(Config.Workers(), Config.chunkSize, queue),
	}
}

func (sto *storage) registerCategory(tags []Tag, components []Component, capacity int) (Category, error) {
	if sto.locked.Load() {
		return NoCategory, LockedStorageError{}
	}
	for _, c := range components {
		sto.schema.Register(c)
		if sto.schema.RowIndexFor(c) >= mask.MaxBits {
			return NoCategory, CapacityExceededError{Category: NoCategory, Capacity: mask.MaxBits, Resource: "component"}
		}
	}
	if err := sto.registry.reserve(tagMask(tags)); err != nil {
		return NoCategory, err
	}
	g, err := newGroup(sto, Category(len(sto.groups)), tags, components, capacity)
	if err != nil {
		return NoCategory, fmt.Errorf("failed to build category table: %w", err)
	}
	sto.registry.register(g)
	sto.groups = append(sto.groups, g)
	return g.id, nil
}

func (sto *storage) group(cat Category) (*group, error) {
	if int(cat) >= len(sto.groups) {
		return nil, InvalidHandleError{Handle: Handle{Category: cat}, Reason: "unknown category"}
	}
	return sto.groups[cat], nil
}

func (sto *storage) NewEntity(cat Category, values ...Value) (Reference, error) {
	if sto.locked.Load() {
		return InvalidReference, LockedStorageError{}
	}
	g, err := sto.group(cat)
	if err != nil {
		return InvalidReference, err
	}
	return sto.create(g, values)
}

func (sto *storage) NewEntities(cat Category, n int) ([]Reference, error) {
	if sto.locked.Load() {
		return nil, LockedStorageError{}
	}
	g, err := sto.group(cat)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if g.capacity > 0 && g.len()+n > g.capacity {
		return nil, CapacityExceededError{Category: cat, Capacity: g.capacity}
	}
	start, err := g.appendRows(n)
	if err != nil {
		return nil, fmt.Errorf("failed to create entities: %w", err)
	}
	refs := referenceColumn.Column(Batch{group: g})
	created := make([]Reference, n)
	for i := range created {
		row := start + i
		ref := sto.refs.allocate()
		refs[row] = ref
		sto.refs.repoint(ref, g.id, row)
		created[i] = ref
	}
	return created, nil
}

func (sto *storage) create(g *group, values []Value) (Reference, error) {
	if g.full() {
		return InvalidReference, CapacityExceededError{Category: g.id, Capacity: g.capacity}
	}
	for _, v := range values {
		if !g.table.Contains(v.component()) {
			return InvalidReference, ComponentNotFoundError{Component: v.component(), Category: g.id}
		}
	}
	row, err := g.appendRows(1)
	if err != nil {
		return InvalidReference, fmt.Errorf("failed to create entity: %w", err)
	}
	for _, v := range values {
		v.write(g.table, row)
	}
	ref := sto.refs.allocate()
	*referenceColumn.Get(row, g.table) = ref
	sto.refs.repoint(ref, g.id, row)
	return ref, nil
}

func (sto *storage) MoveEntity(h Handle, dest Category) error {
	if sto.locked.Load() {
		return LockedStorageError{}
	}
	return sto.move(h, dest)
}

func (sto *storage) RemoveEntity(h Handle) error {
	if sto.locked.Load() {
		return LockedStorageError{}
	}
	return sto.remove(h)
}

// locate validates h against the reference table and the category's row.
func (sto *storage) locate(h Handle) (location, error) {
	ref := h.Reference()
	loc, err := sto.refs.resolve(ref)
	if err != nil {
		return location{}, InvalidHandleError{Handle: h, Reason: "entity no longer exists"}
	}
	if loc.category != h.Category {
		return location{}, InvalidHandleError{
			Handle: h,
			Reason: fmt.Sprintf("entity lives in category %d", loc.category),
		}
	}
	g := sto.groups[loc.category]
	if int(loc.index) >= g.len() || g.reference(int(loc.index)) != ref {
		return location{}, InvalidHandleError{Handle: h, Reason: "slot does not hold this entity"}
	}
	return loc, nil
}

func (sto *storage) move(h Handle, dest Category) error {
	loc, err := sto.locate(h)
	if err != nil {
		return err
	}
	dst, err := sto.group(dest)
	if err != nil {
		return err
	}
	if dest == loc.category {
		return nil
	}
	if dst.full() {
		return CapacityExceededError{Category: dest, Capacity: dst.capacity}
	}
	src := sto.groups[loc.category]
	row := int(loc.index)

	newRow, err := src.transfer(dst, row)
	if err != nil {
		return fmt.Errorf("failed to transfer entity %d: %w", h.ID, err)
	}
	sto.repointSwapped(src, row)
	sto.refs.repoint(h.Reference(), dest, newRow)
	return nil
}

func (sto *storage) remove(h Handle) error {
	loc, err := sto.locate(h)
	if err != nil {
		return err
	}
	src := sto.groups[loc.category]
	row := int(loc.index)
	if err := src.delete(row); err != nil {
		return fmt.Errorf("failed to delete entity %d: %w", h.ID, err)
	}
	sto.repointSwapped(src, row)
	sto.refs.release(h.Reference())
	return nil
}

// repointSwapped fixes the reference of the entity the table swapped into
// the vacated row, if any.
func (sto *storage) repointSwapped(g *group, row int) {
	if row < g.len() {
		sto.refs.repoint(g.reference(row), g.id, row)
	}
}

func (sto *storage) EnqueueCreate(cat Category, values ...Value) {
	sto.queue.enqueue(sharedLane, mutation{typ: opCreate, dest: cat, values: values})
}

func (sto *storage) EnqueueMove(h Handle, dest Category) {
	sto.queue.enqueue(sharedLane, mutation{typ: opMove, handle: h, dest: dest})
}

func (sto *storage) EnqueueRemove(h Handle) {
	sto.queue.enqueue(sharedLane, mutation{typ: opRemove, handle: h})
}

func (sto *storage) Resolve(ref Reference) (Handle, error) {
	loc, err := sto.refs.resolve(ref)
	if err != nil {
		return Handle{}, err
	}
	return Handle{ID: uint32(ref), Category: loc.category}, nil
}

func (sto *storage) Valid(ref Reference) bool {
	_, err := sto.refs.resolve(ref)
	return err == nil
}

func (sto *storage) CategoryFor(tags ...Tag) (Category, bool) {
	return sto.registry.lookup(tagMask(tags))
}

func (sto *storage) CategoryNamed(name string) (Category, bool) {
	return sto.registry.lookupName(name)
}

func (sto *storage) Batch(cat Category) Batch {
	g, err := sto.group(cat)
	if err != nil {
		return Batch{}
	}
	return Batch{group: g}
}

// BatchesFor yields one batch per listed category, skipping empty ones.
func (sto *storage) BatchesFor(cats ...Category) iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		for _, cat := range cats {
			g, err := sto.group(cat)
			if err != nil || g.len() == 0 {
				continue
			}
			if !yield(Batch{group: g}) {
				return
			}
		}
	}
}

// Batches yields one batch per non-empty category matching q, in category
// registration order.
func (sto *storage) Batches(q QueryNode) iter.Seq[Batch] {
	return sto.BatchesFor(sto.Categories(q)...)
}

// Matching collects Batches(q) into a slice.
func (sto *storage) Matching(q QueryNode) []Batch {
	return iter_util.Collect(sto.Batches(q))
}

func (sto *storage) Categories(q QueryNode) []Category {
	var cats []Category
	for _, g := range sto.groups {
		if q.Evaluate(g, sto) {
			cats = append(cats, g.id)
		}
	}
	return cats
}

func (sto *storage) Count(cat Category) int {
	g, err := sto.group(cat)
	if err != nil {
		return 0
	}
	return g.len()
}

func (sto *storage) CountMatching(q QueryNode) int {
	total := 0
	for _, cat := range sto.Categories(q) {
		total += sto.groups[cat].len()
	}
	return total
}

func (sto *storage) Dispatcher() *Dispatcher {
	return sto.dispatcher
}

func (sto *storage) Locked() bool {
	return sto.locked.Load()
}

func (sto *storage) RowIndexFor(c Component) uint32 {
	return sto.schema.RowIndexFor(c)
}

func (sto *storage) Close() {
	sto.dispatcher.Close()
}
