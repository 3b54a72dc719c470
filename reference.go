package pen

import "math"

// Reference is a permanent entity identifier. It survives moves between
// categories and is never reissued, so a reference to a removed entity can
// only ever resolve to DanglingReferenceError.
type Reference uint32

// InvalidReference is the zero Reference; it is never issued.
const InvalidReference Reference = 0

const tombstone = -1

type location struct {
	category Category
	index    int32
}

// referenceTable maps references to their current (category, index).
// It has a single writer (the goroutine holding the unlocked storage or
// draining the queue) and any number of readers while the storage is locked.
type referenceTable struct {
	slots []location
}

func newReferenceTable(capacity int) *referenceTable {
	return &referenceTable{slots: make([]location, 0, capacity)}
}

// allocate issues the next reference. The slot starts as a tombstone until
// repointed.
func (t *referenceTable) allocate() Reference {
	if len(t.slots) >= math.MaxUint32-1 {
		panic("pen: entity reference space exhausted")
	}
	t.slots = append(t.slots, location{category: NoCategory, index: tombstone})
	return Reference(len(t.slots))
}

func (t *referenceTable) resolve(ref Reference) (location, error) {
	if ref == InvalidReference || int(ref) > len(t.slots) {
		return location{}, DanglingReferenceError{Reference: ref}
	}
	loc := t.slots[ref-1]
	if loc.index == tombstone {
		return location{}, DanglingReferenceError{Reference: ref}
	}
	return loc, nil
}

func (t *referenceTable) repoint(ref Reference, cat Category, index int) {
	t.slots[ref-1] = location{category: cat, index: int32(index)}
}

// release permanently invalidates ref.
func (t *referenceTable) release(ref Reference) {
	t.slots[ref-1] = location{category: NoCategory, index: tombstone}
}

func (t *referenceTable) issued() int {
	return len(t.slots)
}
