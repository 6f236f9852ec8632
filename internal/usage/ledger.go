package usage

import (
	"encoding/json"
	"fmt"
	"sync"
)

const snapshotKey = "usage_ledger"

// Store is the durable local key-value store the ledger persists into.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Counters are the per-session accumulation fields. They reset on an
// explicit clear or a model switch; lifetime fields never do.
type Counters struct {
	InputTokens       int64 `json:"inputTokens"`
	OutputTextTokens  int64 `json:"outputTextTokens"`
	OutputImageTokens int64 `json:"outputImageTokens"`
	TotalTokens       int64 `json:"totalTokens"`
	ImageCount        int64 `json:"imageCount"`
}

// Snapshot is the persisted form of the ledger. Encoding and decoding are
// exact inverses; absent fields decode to zero.
type Snapshot struct {
	Session            Counters `json:"session"`
	SessionCost        float64  `json:"sessionCost"`
	LifetimeCost       float64  `json:"lifetimeCost"`
	LifetimeImageCount int64    `json:"lifetimeImageCount"`
}

func EncodeSnapshot(s Snapshot) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode usage snapshot: %w", err)
	}
	return string(data), nil
}

func DecodeSnapshot(data string) (Snapshot, error) {
	var s Snapshot
	if data == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode usage snapshot: %w", err)
	}
	return s, nil
}

// Breakdown is a read-only cost projection of the current session counters
// under a given model's pricing.
type Breakdown struct {
	InputCost    float64
	OutputCost   float64
	TotalCost    float64
	LifetimeCost float64
}

// Ledger accumulates token counts and derives monetary cost per generation
// call. It persists to the local store on every mutation and rehydrates at
// construction; a failed persist keeps the in-memory values.
type Ledger struct {
	mu    sync.Mutex
	table PriceTable
	store Store
	snap  Snapshot
}

func NewLedger(table PriceTable, store Store) *Ledger {
	l := &Ledger{table: table, store: store}
	if store != nil {
		if raw, ok := store.Get(snapshotKey); ok {
			if snap, err := DecodeSnapshot(raw); err == nil {
				l.snap = snap
			}
		}
	}
	return l
}

// AddCall records one successful generation call and returns its cost.
// The persist error, if any, is returned after the in-memory update; the
// accumulated values are valid either way.
func (l *Ledger) AddCall(inputTokens, outputTextTokens, outputImageTokens int64, model string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.snap.Session.InputTokens += inputTokens
	l.snap.Session.OutputTextTokens += outputTextTokens
	l.snap.Session.OutputImageTokens += outputImageTokens
	l.snap.Session.TotalTokens += inputTokens + outputTextTokens + outputImageTokens
	l.snap.Session.ImageCount++

	cost := l.table.Lookup(model).CallCost(inputTokens, outputTextTokens, outputImageTokens)
	l.snap.SessionCost += cost
	l.snap.LifetimeCost += cost
	l.snap.LifetimeImageCount++

	return cost, l.persistLocked()
}

// Reset zeroes the session counters and session cost. Lifetime fields are
// untouched.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.snap.Session = Counters{}
	l.snap.SessionCost = 0
	return l.persistLocked()
}

// CostBreakdown prices the current session counters under the given model.
// Pricing is always by the currently selected model, not the model each call
// was actually billed under; after a mid-session model switch without a
// reset the projection is a known approximation.
func (l *Ledger) CostBreakdown(model string) Breakdown {
	l.mu.Lock()
	defer l.mu.Unlock()

	pricing := l.table.Lookup(model)
	in := pricing.InputCost(l.snap.Session.InputTokens)
	out := pricing.OutputCost(l.snap.Session.OutputTextTokens, l.snap.Session.OutputImageTokens, l.snap.Session.ImageCount)
	return Breakdown{
		InputCost:    in,
		OutputCost:   out,
		TotalCost:    in + out,
		LifetimeCost: l.snap.LifetimeCost,
	}
}

// Snapshot returns a copy of the current ledger state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// MergeLifetime adopts each remote lifetime value only when it is strictly
// greater than the local one. Values are never summed and never decreased,
// so a stale remote read cannot erase newer local accumulation. Reports
// whether anything changed.
func (l *Ledger) MergeLifetime(lifetimeCost float64, lifetimeImageCount int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	if lifetimeCost > l.snap.LifetimeCost {
		l.snap.LifetimeCost = lifetimeCost
		changed = true
	}
	if lifetimeImageCount > l.snap.LifetimeImageCount {
		l.snap.LifetimeImageCount = lifetimeImageCount
		changed = true
	}
	if !changed {
		return false, nil
	}
	return true, l.persistLocked()
}

func (l *Ledger) persistLocked() error {
	if l.store == nil {
		return nil
	}
	raw, err := EncodeSnapshot(l.snap)
	if err != nil {
		return err
	}
	return l.store.Set(snapshotKey, raw)
}
