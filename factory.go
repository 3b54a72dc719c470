package pen

import (
	"sync/atomic"

	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
)

type factory struct{}

var Factory factory

var nextTagBit atomic.Uint32

func (f factory) NewStorage(schema table.Schema) Storage {
	return newStorage(schema)
}

func (f factory) NewQuery() Query {
	return newQuery()
}

// NewDispatcher returns a standalone pool. Chunks it runs have no mutation
// queue attached, so their Enqueue methods must not be used.
func (f factory) NewDispatcher(workers, chunkSize int) *Dispatcher {
	return newDispatcher(workers, chunkSize, nil)
}

func FactoryNewComponent[T any]() AccessibleComponent[T] {
	iden := table.FactoryNewElementType[T]()
	return AccessibleComponent[T]{
		Component: iden,
		Accessor:  table.FactoryNewAccessor[T](iden),
	}
}

// NewTag allocates a process-wide tag bit. Tags share one mask per category,
// so at most mask.MaxBits of them can exist.
func (f factory) NewTag(name string) (Tag, error) {
	bit := nextTagBit.Add(1) - 1
	if bit >= mask.MaxBits {
		return Tag{}, CapacityExceededError{Category: NoCategory, Capacity: mask.MaxBits, Resource: "tag"}
	}
	return Tag{bit: bit, name: name}, nil
}

// FactoryNewTag is NewTag for package-level declarations. It panics with a
// CapacityExceededError once the tag bits run out.
func FactoryNewTag(name string) Tag {
	tag, err := Factory.NewTag(name)
	if err != nil {
		panic(err)
	}
	return tag
}
