package metrics

import (
	"fmt"
	"sync/atomic"
)

// PassMetrics aggregates counters over all marketplace passes of one run.
type PassMetrics struct {
	Passes       atomic.Int32
	FailedPasses atomic.Int32
	LockedPasses atomic.Int32
	Created      atomic.Int32
	Updated      atomic.Int32
	Unchanged    atomic.Int32
	Skipped      atomic.Int32
	Unpublished  atomic.Int32
	Orders       atomic.Int32
	Inventory    atomic.Int32
}

func (m *PassMetrics) AddImport(created, updated, unchanged, skipped, unpublished int) {
	m.Created.Add(int32(created))
	m.Updated.Add(int32(updated))
	m.Unchanged.Add(int32(unchanged))
	m.Skipped.Add(int32(skipped))
	m.Unpublished.Add(int32(unpublished))
}

func (m *PassMetrics) String() string {
	return fmt.Sprintf(
		"passes=%d failed=%d locked=%d created=%d updated=%d unchanged=%d skipped=%d unpublished=%d orders=%d inventory=%d",
		m.Passes.Load(), m.FailedPasses.Load(), m.LockedPasses.Load(),
		m.Created.Load(), m.Updated.Load(), m.Unchanged.Load(), m.Skipped.Load(), m.Unpublished.Load(),
		m.Orders.Load(), m.Inventory.Load(),
	)
}
