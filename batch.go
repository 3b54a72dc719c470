package pen

import "github.com/TheBitDrifter/table"

// Batch is one category's rows exposed to iteration and scheduled work.
// Row order is stable until the next drain.
type Batch struct {
	group *group
}

func (b Batch) Len() int {
	if b.group == nil {
		return 0
	}
	return b.group.len()
}

func (b Batch) Category() Category {
	if b.group == nil {
		return NoCategory
	}
	return b.group.id
}

func (b Batch) Name() string {
	if b.group == nil {
		return ""
	}
	return b.group.name
}

// Has reports whether the batch's category carries tag.
func (b Batch) Has(tag Tag) bool {
	if b.group == nil {
		return false
	}
	for _, t := range b.group.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Handle returns the handle of row i.
func (b Batch) Handle(i int) Handle {
	return Handle{ID: uint32(b.group.reference(i)), Category: b.group.id}
}

// Reference returns the permanent reference of row i.
func (b Batch) Reference(i int) Reference {
	return b.group.reference(i)
}

// References returns the batch's reference column.
func (b Batch) References() []Reference {
	if b.group == nil {
		return nil
	}
	return referenceColumn.Column(b)
}

// Table exposes the category's underlying table.
func (b Batch) Table() table.Table {
	if b.group == nil {
		return nil
	}
	return b.group.table
}
