package prompts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func seededList(clock *fakeClock) *List {
	l := NewList(clock.Now)
	l.Initialize(State{
		Items: []Item{
			{Name: "wide", Text: "wide shot", Enabled: true},
			{Name: "close", Text: "close up", Enabled: true},
			{Name: "draft", Text: "rough pass", Enabled: false},
		},
		BeforeText: "Edit:",
	})
	return l
}

func TestList_InitializeOnce(t *testing.T) {
	l := NewList(nil)

	require.True(t, l.Initialize(State{BeforeText: "first"}))
	assert.Equal(t, PhaseClean, l.Phase())

	// A second remote snapshot must not clobber state.
	assert.False(t, l.Initialize(State{BeforeText: "second"}))
	assert.Equal(t, "first", l.Snapshot().BeforeText)
}

func TestList_SnapshotReflectsLastMutation(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)

	require.NoError(t, l.SetText(0, "wider shot"))
	assert.Equal(t, "wider shot", l.Snapshot().Items[0].Text)

	l.Add()
	assert.Len(t, l.Snapshot().Items, 4)

	require.NoError(t, l.Remove(3))
	assert.Len(t, l.Snapshot().Items, 3)

	require.NoError(t, l.SetEnabled(2, true))
	assert.True(t, l.Snapshot().Items[2].Enabled)
}

func TestList_MutationsMarkDirtyAndStampTime(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)
	assert.Equal(t, PhaseClean, l.Phase())

	clock.Advance(3 * time.Second)
	require.NoError(t, l.SetName(0, "wider"))

	assert.Equal(t, PhaseDirty, l.Phase())
	assert.Equal(t, clock.Now(), l.LastEditAt())
}

func TestList_OnChangeFiresSynchronously(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)

	var seen []State
	l.SetOnChange(func(s State) { seen = append(seen, s) })

	require.NoError(t, l.SetText(1, "closer"))
	l.Add()
	require.NoError(t, l.Move(0, 1))

	require.Len(t, seen, 3)
	assert.Equal(t, "closer", seen[0].Items[1].Text)
	assert.Len(t, seen[1].Items, 4)
	assert.Equal(t, "close", seen[2].Items[0].Name)

	// Observer gets a copy, not a live reference.
	seen[2].Items[0].Name = "mutated"
	assert.Equal(t, "close", l.Snapshot().Items[0].Name)
}

func TestList_MoveIsSplice(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)

	require.NoError(t, l.Move(0, 2))

	names := func() []string {
		var out []string
		for _, item := range l.Snapshot().Items {
			out = append(out, item.Name)
		}
		return out
	}
	assert.Equal(t, []string{"close", "draft", "wide"}, names())

	require.NoError(t, l.Move(2, 0))
	assert.Equal(t, []string{"wide", "close", "draft"}, names())
}

func TestList_MoveOntoItselfIsNoOp(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)

	require.NoError(t, l.Move(1, 1))
	assert.Equal(t, PhaseClean, l.Phase())
}

func TestList_IndexOutOfRange(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)

	assert.ErrorIs(t, l.SetText(5, "x"), ErrIndexOutOfRange)
	assert.ErrorIs(t, l.Remove(-1), ErrIndexOutOfRange)
	assert.ErrorIs(t, l.Move(0, 9), ErrIndexOutOfRange)
}

func TestList_ApplyRemoteGatedByDirty(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)

	require.NoError(t, l.SetText(0, "local edit"))
	require.Equal(t, PhaseDirty, l.Phase())

	// Inbound remote update is suppressed while edits are unflushed.
	assert.False(t, l.ApplyRemote(State{BeforeText: "remote"}))
	assert.Equal(t, "local edit", l.Snapshot().Items[0].Text)

	// After a successful flush the next update applies.
	_, ok := l.BeginFlush()
	require.True(t, ok)
	l.EndFlush(true)
	require.Equal(t, PhaseClean, l.Phase())

	assert.True(t, l.ApplyRemote(State{BeforeText: "remote"}))
	assert.Equal(t, "remote", l.Snapshot().BeforeText)
}

func TestList_ApplyRemoteGatedWhileFlushing(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)

	require.NoError(t, l.SetText(0, "local edit"))
	_, ok := l.BeginFlush()
	require.True(t, ok)

	assert.False(t, l.ApplyRemote(State{BeforeText: "remote"}))
	l.EndFlush(true)
}

func TestList_EditDuringFlushExtendsDirtyWindow(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)

	require.NoError(t, l.SetText(0, "first"))
	_, ok := l.BeginFlush()
	require.True(t, ok)

	// Edit lands while the flush is in flight.
	clock.Advance(time.Second)
	require.NoError(t, l.SetText(0, "second"))

	l.EndFlush(true)
	assert.Equal(t, PhaseDirty, l.Phase(), "flush success must not swallow the newer edit")
	assert.Equal(t, "second", l.Snapshot().Items[0].Text)
}

func TestList_FailedFlushStaysDirty(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)

	require.NoError(t, l.SetText(0, "edit"))
	_, ok := l.BeginFlush()
	require.True(t, ok)
	l.EndFlush(false)

	assert.Equal(t, PhaseDirty, l.Phase())
}

func TestList_QuietSince(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)
	quiet := 5 * time.Second

	assert.False(t, l.QuietSince(clock.Now(), quiet), "clean list never flushes")

	require.NoError(t, l.SetText(0, "edit"))
	assert.False(t, l.QuietSince(clock.Now(), quiet))

	clock.Advance(4 * time.Second)
	assert.False(t, l.QuietSince(clock.Now(), quiet))

	clock.Advance(time.Second)
	assert.True(t, l.QuietSince(clock.Now(), quiet))
}

func TestState_EnabledItems(t *testing.T) {
	clock := newFakeClock()
	l := seededList(clock)

	enabled := l.Snapshot().EnabledItems()
	require.Len(t, enabled, 2)
	assert.Equal(t, "wide", enabled[0].Name)
	assert.Equal(t, "close", enabled[1].Name)
}
