package wisersell

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/developkariyer/IWApim/metrics"
	"github.com/developkariyer/IWApim/pkg/clock"
	"github.com/developkariyer/IWApim/pkg/filecache"
)

const QuarantineFile = "wisersell_errors.json"

type quarantineEntry struct {
	Kind          string          `json:"kind"`
	Reason        string          `json:"reason"`
	QuarantinedAt time.Time       `json:"quarantinedAt"`
	Record        json.RawMessage `json:"record"`
}

// Quarantine is the append-only error file for ERP records nobody could match.
type Quarantine struct {
	store *filecache.Store
	key   string
	clock clock.Clock

	mu   sync.Mutex
	seen map[string]bool
}

func NewQuarantine(store *filecache.Store, clk clock.Clock) *Quarantine {
	if clk == nil {
		clk = clock.Real()
	}
	return &Quarantine{store: store, key: QuarantineFile, clock: clk, seen: map[string]bool{}}
}

// Put appends the record once per id and kind for the lifetime of q and
// reports whether it was written. The record is kept as given.
func (q *Quarantine) Put(kind, id, reason string, record json.RawMessage) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if id != "" && q.seen[kind+"/"+id] {
		return false, nil
	}
	data, err := json.MarshalIndent(quarantineEntry{
		Kind:          kind,
		Reason:        reason,
		QuarantinedAt: q.clock.Now().UTC(),
		Record:        record,
	}, "", "    ")
	if err != nil {
		return false, fmt.Errorf("quarantine %s %s: %w", kind, id, err)
	}
	if err := q.store.Append(q.key, append(data, '\n')); err != nil {
		return false, err
	}
	q.seen[kind+"/"+id] = true
	metrics.RecordQuarantine(kind)
	return true, nil
}

func (q *Quarantine) Path() string {
	return q.store.Path(q.key)
}
