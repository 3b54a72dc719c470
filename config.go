package pen

import (
	"runtime"

	"github.com/TheBitDrifter/table"
)

// Config holds global defaults applied to storages created afterwards.
var Config config = config{
	chunkSize:         256,
	maxCategories:     64,
	referenceCapacity: 1024,
}

type config struct {
	tableEvents       table.TableEvents
	workers           int
	chunkSize         int
	maxCategories     int
	referenceCapacity int
}

// SetTableEvents configures the table event callbacks of categories built
// afterwards.
func (c *config) SetTableEvents(te table.TableEvents) {
	c.tableEvents = te
}

// SetWorkers sets the dispatcher pool size; zero or less means GOMAXPROCS.
func (c *config) SetWorkers(n int) {
	c.workers = n
}

// SetChunkSize sets how many rows one scheduled job covers.
func (c *config) SetChunkSize(n int) {
	c.chunkSize = n
}

// SetMaxCategories bounds the category registry.
func (c *config) SetMaxCategories(n int) {
	c.maxCategories = n
}

// SetReferenceCapacity preallocates the reference table.
func (c *config) SetReferenceCapacity(n int) {
	c.referenceCapacity = n
}

func (c *config) Workers() int {
	if c.workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.workers
}
