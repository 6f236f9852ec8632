package prompts

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrIndexOutOfRange = errors.New("prompt index out of range")

// List is the local-first prompt editor state. Every mutation lands
// synchronously, marks the list dirty, stamps the edit time, and notifies
// the observer with a full snapshot — dependent computations never wait for
// a flush. The remote copy is reconciled separately by the autosave syncer.
type List struct {
	mu       sync.Mutex
	state    State
	phase    Phase
	lastEdit time.Time
	now      func() time.Time
	onChange func(State)
}

func NewList(now func() time.Time) *List {
	if now == nil {
		now = time.Now
	}
	return &List{now: now, phase: PhaseUninitialized}
}

// SetOnChange registers the observer called synchronously after every
// mutation with a deep-copied snapshot.
func (l *List) SetOnChange(fn func(State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// Initialize populates the list from a remote snapshot exactly once.
// Later snapshots are ignored so a slow remote read cannot clobber edits;
// forced application goes through ApplyRemote.
func (l *List) Initialize(state State) bool {
	l.mu.Lock()
	if l.phase != PhaseUninitialized {
		l.mu.Unlock()
		return false
	}
	l.state = state.Clone()
	l.phase = PhaseClean
	l.mu.Unlock()

	l.notify()
	return true
}

// ApplyRemote replaces the local state with an inbound remote snapshot.
// Refused while local edits are unflushed (dirty or flushing) — the gate
// that keeps a slow round-trip from overwriting newer keystrokes.
func (l *List) ApplyRemote(state State) bool {
	l.mu.Lock()
	if l.phase == PhaseDirty || l.phase == PhaseFlushing {
		l.mu.Unlock()
		return false
	}
	l.state = state.Clone()
	l.phase = PhaseClean
	l.mu.Unlock()

	l.notify()
	return true
}

func (l *List) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Clone()
}

func (l *List) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

func (l *List) LastEditAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastEdit
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state.Items)
}

// Add appends an empty enabled prompt.
func (l *List) Add() {
	l.mutate(func() {
		l.state.Items = append(l.state.Items, Item{Enabled: true})
	})
}

func (l *List) Remove(index int) error {
	return l.mutateAt(index, func() {
		l.state.Items = append(l.state.Items[:index], l.state.Items[index+1:]...)
	})
}

// Move splices the item at from out of the list and reinserts it at to.
// Moving an item onto itself is a no-op.
func (l *List) Move(from, to int) error {
	l.mu.Lock()
	n := len(l.state.Items)
	if from < 0 || from >= n || to < 0 || to >= n {
		l.mu.Unlock()
		return fmt.Errorf("%w: move %d -> %d (len %d)", ErrIndexOutOfRange, from, to, n)
	}
	if from == to {
		l.mu.Unlock()
		return nil
	}
	item := l.state.Items[from]
	l.state.Items = append(l.state.Items[:from], l.state.Items[from+1:]...)
	l.state.Items = append(l.state.Items[:to], append([]Item{item}, l.state.Items[to:]...)...)
	l.markDirtyLocked()
	l.mu.Unlock()

	l.notify()
	return nil
}

func (l *List) SetName(index int, name string) error {
	return l.mutateAt(index, func() { l.state.Items[index].Name = name })
}

func (l *List) SetText(index int, text string) error {
	return l.mutateAt(index, func() { l.state.Items[index].Text = text })
}

func (l *List) SetEnabled(index int, enabled bool) error {
	return l.mutateAt(index, func() { l.state.Items[index].Enabled = enabled })
}

func (l *List) SetSkipSurrounding(index int, skip bool) error {
	return l.mutateAt(index, func() { l.state.Items[index].SkipSurrounding = skip })
}

func (l *List) SetBeforeText(text string) {
	l.mutate(func() { l.state.BeforeText = text })
}

func (l *List) SetAfterText(text string) {
	l.mutate(func() { l.state.AfterText = text })
}

// BeginFlush transitions dirty -> flushing and hands back the snapshot to
// send. Returns false when there is nothing to flush.
func (l *List) BeginFlush() (State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != PhaseDirty {
		return State{}, false
	}
	l.phase = PhaseFlushing
	return l.state.Clone(), true
}

// EndFlush resolves a flush started with BeginFlush. Edits that arrived
// while the flush was pending have already moved the phase back to dirty;
// in that case the dirty window extends and the next tick retries.
func (l *List) EndFlush(ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != PhaseFlushing {
		return
	}
	if ok {
		l.phase = PhaseClean
	} else {
		l.phase = PhaseDirty
	}
}

// QuietSince reports whether the list is dirty and untouched for at least
// the quiet threshold — the flush condition.
func (l *List) QuietSince(now time.Time, quiet time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase == PhaseDirty && now.Sub(l.lastEdit) >= quiet
}

func (l *List) mutate(fn func()) {
	l.mu.Lock()
	fn()
	l.markDirtyLocked()
	l.mu.Unlock()

	l.notify()
}

func (l *List) mutateAt(index int, fn func()) error {
	l.mu.Lock()
	if index < 0 || index >= len(l.state.Items) {
		n := len(l.state.Items)
		l.mu.Unlock()
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, n)
	}
	fn()
	l.markDirtyLocked()
	l.mu.Unlock()

	l.notify()
	return nil
}

func (l *List) markDirtyLocked() {
	l.phase = PhaseDirty
	l.lastEdit = l.now()
}

func (l *List) notify() {
	l.mu.Lock()
	fn := l.onChange
	var snap State
	if fn != nil {
		snap = l.state.Clone()
	}
	l.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}
