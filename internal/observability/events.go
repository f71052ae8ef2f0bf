package observability

import (
	"context"
	"sort"
	"sync"
)

// Event counters are process-local and feed the /api/stats endpoint. Not a
// metrics pipeline; operators only need issuance and checkpoint outcomes.
var events = &eventCounters{counts: make(map[string]int64)}

type eventCounters struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (e *eventCounters) inc(key string) {
	e.mu.Lock()
	e.counts[key]++
	e.mu.Unlock()
}

// RecordIssuanceEvent counts one issuance attempt by outcome
// (success, unauthorized, missing_subject).
func RecordIssuanceEvent(_ context.Context, outcome string) {
	events.inc("issuance." + outcome)
}

// RecordCheckpointEvent counts one state machine action by outcome, e.g.
// ("confirm", "out_of_order") or ("launch", "success").
func RecordCheckpointEvent(_ context.Context, action, outcome string) {
	events.inc("checkpoint." + action + "." + outcome)
}

// RecordStoreOperation counts one session store operation.
func RecordStoreOperation(_ context.Context, backend, op, outcome string) {
	events.inc("store." + backend + "." + op + "." + outcome)
}

// Snapshot returns a copy of all counters, keys sorted for stable output.
func Snapshot() map[string]int64 {
	events.mu.Lock()
	defer events.mu.Unlock()
	out := make(map[string]int64, len(events.counts))
	for k, v := range events.counts {
		out[k] = v
	}
	return out
}

// SnapshotKeys returns the counter names in sorted order.
func SnapshotKeys() []string {
	snap := Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
