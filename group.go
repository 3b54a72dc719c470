package pen

import (
	"reflect"
	"strings"

	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
)

var _ Group = &group{}

// referenceColumn is carried by every category table, so each row knows the
// permanent reference of the entity it holds.
var referenceColumn = FactoryNewComponent[Reference]()

// group is one category: its tags plus a table with a column per component.
type group struct {
	id       Category
	name     string
	tags     []Tag
	tagMask  mask.Mask
	table    table.Table
	capacity int
}

func newGroup(sto *storage, id Category, tags []Tag, components []Component, capacity int) (*group, error) {
	elementTypes := make([]table.ElementType, 0, len(components)+1)
	elementTypes = append(elementTypes, referenceColumn)
	for _, comp := range components {
		elementTypes = append(elementTypes, comp)
	}
	tbl, err := table.NewTableBuilder().
		WithSchema(sto.schema).
		WithEntryIndex(sto.entryIndex).
		WithElementTypes(elementTypes...).
		WithEvents(Config.tableEvents).
		Build()
	if err != nil {
		return nil, err
	}
	return &group{
		id:       id,
		name:     tagNames(tags),
		tags:     tags,
		tagMask:  tagMask(tags),
		table:    tbl,
		capacity: capacity,
	}, nil
}

func (g *group) ID() Category {
	return g.id
}

func (g *group) Name() string {
	return g.name
}

func (g *group) TagMask() mask.Mask {
	return g.tagMask
}

func (g *group) ComponentMask() mask.Mask {
	return g.table.(mask.Maskable).Mask()
}

func (g *group) Table() table.Table {
	return g.table
}

func (g *group) len() int {
	return g.table.Length()
}

func (g *group) full() bool {
	return g.capacity > 0 && g.len() >= g.capacity
}

func (g *group) reference(row int) Reference {
	return *referenceColumn.Get(row, g.table)
}

// appendRows adds n zeroed rows and returns the index of the first.
func (g *group) appendRows(n int) (int, error) {
	start := g.len()
	if _, err := g.table.NewEntries(n); err != nil {
		return 0, err
	}
	// Popped rows keep their old values in the backing arrays.
	for et := range g.table.ElementTypes() {
		zero := reflect.Zero(et.Type())
		for row := start; row < start+n; row++ {
			if err := g.table.Set(et, zero, row); err != nil {
				return 0, err
			}
		}
	}
	return start, nil
}

// transfer moves row into dst. Columns both tables carry are copied, columns
// only dst carries are zeroed and the rest are dropped. It returns the new
// row in dst.
func (g *group) transfer(dst *group, row int) (int, error) {
	if err := g.table.TransferEntries(dst.table, row); err != nil {
		return 0, err
	}
	newRow := dst.len() - 1
	for et := range dst.table.ElementTypes() {
		if g.table.Contains(et) {
			continue
		}
		if err := dst.table.Set(et, reflect.Zero(et.Type()), newRow); err != nil {
			return 0, err
		}
	}
	return newRow, nil
}

func (g *group) delete(row int) error {
	_, err := g.table.DeleteEntries(row)
	return err
}

func tagMask(tags []Tag) mask.Mask {
	var m mask.Mask
	for _, t := range tags {
		m.Mark(t.bit)
	}
	return m
}

func tagNames(tags []Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.name
	}
	return strings.Join(names, "/")
}
