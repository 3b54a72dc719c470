package pen

import "fmt"

type LockedStorageError struct{}

func (e LockedStorageError) Error() string {
	return "storage is currently locked"
}

// InvalidHandleError reports a handle whose recorded category or slot no
// longer matches the store.
type InvalidHandleError struct {
	Handle Handle
	Reason string
}

func (e InvalidHandleError) Error() string {
	return fmt.Sprintf("invalid handle %v: %s", e.Handle, e.Reason)
}

// DanglingReferenceError reports a reference that was never issued or whose
// entity has been removed.
type DanglingReferenceError struct {
	Reference Reference
}

func (e DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling entity reference %d", e.Reference)
}

// DuplicateMutationError reports a queued mutation whose handle was already
// consumed earlier in the same drain.
type DuplicateMutationError struct {
	Handle Handle
	Op     string
}

func (e DuplicateMutationError) Error() string {
	return fmt.Sprintf("duplicate %s of handle %v within one drain", e.Op, e.Handle)
}

// CapacityExceededError reports a full category. With Category set to
// NoCategory it reports the exhausted Resource instead: the category
// registry when Resource is empty, else tag or component bits.
type CapacityExceededError struct {
	Category Category
	Capacity int
	Resource string
}

func (e CapacityExceededError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s space exhausted (%d)", e.Resource, e.Capacity)
	}
	if e.Category == NoCategory {
		return fmt.Sprintf("category registry at maximum capacity (%d)", e.Capacity)
	}
	return fmt.Sprintf("category %d at maximum capacity (%d)", e.Category, e.Capacity)
}

type ComponentNotFoundError struct {
	Component Component
	Category  Category
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component %v does not exist in category %d", e.Component, e.Category)
}

type CategoryExistsError struct {
	Category Category
}

func (e CategoryExistsError) Error() string {
	return fmt.Sprintf("a category with the same tags already exists: %d", e.Category)
}
