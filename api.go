package pen

import (
	"iter"

	"github.com/TheBitDrifter/table"
)

// Storage owns every category table, the reference table and the mutation
// queue. Structural calls (NewEntity, MoveEntity, RemoveEntity) are only
// permitted outside a tick; inside a tick use the Enqueue variants.
type Storage interface {
	NewEntity(Category, ...Value) (Reference, error)
	NewEntities(Category, int) ([]Reference, error)
	MoveEntity(Handle, Category) error
	RemoveEntity(Handle) error

	EnqueueCreate(Category, ...Value)
	EnqueueMove(Handle, Category)
	EnqueueRemove(Handle)

	Resolve(Reference) (Handle, error)
	Valid(Reference) bool
	CategoryFor(...Tag) (Category, bool)
	CategoryNamed(string) (Category, bool)

	Batch(Category) Batch
	BatchesFor(...Category) iter.Seq[Batch]
	Batches(QueryNode) iter.Seq[Batch]
	Matching(QueryNode) []Batch
	Categories(QueryNode) []Category
	Count(Category) int
	CountMatching(QueryNode) int

	BeginTick() *Tick
	EndTick(*Tick) (DrainStats, error)
	Dispatcher() *Dispatcher
	Locked() bool

	RowIndexFor(Component) uint32
	Close()
}

type Component interface {
	table.ElementType
}

// Value is a component paired with an initial value, used when creating
// entities.
type Value interface {
	component() Component
	write(tbl table.Table, row int)
}

type Query interface {
	QueryNode
	And(items ...interface{}) QueryNode
	Or(items ...interface{}) QueryNode
	Not(items ...interface{}) QueryNode
}

type QueryNode interface {
	Evaluate(group Group, storage Storage) bool
}

// AccessibleComponent couples a table element type with typed column access.
type AccessibleComponent[T any] struct {
	Component
	table.Accessor[T] // concrete.
}

// Chunk is one unit of scheduled work: rows [Start, End) of Batch, executed
// by worker Worker.
type Chunk struct {
	Batch  Batch
	Start  int
	End    int
	Worker int

	queue *mutationQueue
	seq   uint64
}
