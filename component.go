package pen

import "github.com/TheBitDrifter/table"

var _ Component = AccessibleComponent[struct{}]{}

// With pairs the component with an initial value for entity creation.
func (c AccessibleComponent[T]) With(v T) Value {
	return componentValue[T]{comp: c, value: v}
}

// Column returns the batch's dense column for this component. The slice is
// index-aligned with the batch rows and stays valid until the next drain.
// It panics if the batch's category does not carry the component.
func (c AccessibleComponent[T]) Column(b Batch) []T {
	col, ok := c.ColumnSafe(b)
	if !ok {
		panic(ComponentNotFoundError{Component: c, Category: b.Category()})
	}
	return col
}

// ColumnSafe is Column without the panic.
func (c AccessibleComponent[T]) ColumnSafe(b Batch) ([]T, bool) {
	if b.group == nil {
		return nil, false
	}
	row, err := b.group.table.Row(c)
	if err != nil {
		return nil, false
	}
	return row.Interface().([]T), true
}

// Check reports whether the batch's category carries the component.
func (c AccessibleComponent[T]) Check(b Batch) bool {
	if b.group == nil {
		return false
	}
	return c.Accessor.Check(b.group.table)
}

// GetFromChunk returns the component of row i inside a chunk.
func (c AccessibleComponent[T]) GetFromChunk(ch Chunk, i int) *T {
	return c.Get(i, ch.Batch.group.table)
}

// GetFromReference resolves ref and returns a pointer to its component value.
// The pointer is invalidated by the next structural change.
func (c AccessibleComponent[T]) GetFromReference(sto Storage, ref Reference) (*T, error) {
	s := sto.(*storage)
	loc, err := s.refs.resolve(ref)
	if err != nil {
		return nil, err
	}
	tbl := s.groups[loc.category].table
	if !c.Accessor.Check(tbl) {
		return nil, ComponentNotFoundError{Component: c, Category: loc.category}
	}
	return c.Get(int(loc.index), tbl), nil
}

type componentValue[T any] struct {
	comp  AccessibleComponent[T]
	value T
}

func (v componentValue[T]) component() Component {
	return v.comp
}

func (v componentValue[T]) write(tbl table.Table, row int) {
	*v.comp.Get(row, tbl) = v.value
}
