package repl

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohyesboy/BananaPicGen/internal/autosave"
	"github.com/ohyesboy/BananaPicGen/internal/localstore"
	"github.com/ohyesboy/BananaPicGen/internal/orchestrator"
	"github.com/ohyesboy/BananaPicGen/internal/prefs"
	"github.com/ohyesboy/BananaPicGen/internal/prompts"
	"github.com/ohyesboy/BananaPicGen/internal/remote"
	"github.com/ohyesboy/BananaPicGen/internal/usage"
	"github.com/ohyesboy/BananaPicGen/pkg/models"
)

type replFixture struct {
	repl   *REPL
	list   *prompts.List
	ledger *usage.Ledger
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newFixture(t *testing.T) *replFixture {
	t.Helper()

	list := prompts.NewList(nil)
	list.Initialize(prompts.State{
		Items: []prompts.Item{
			{Name: "wide", Text: "wide shot", Enabled: true},
			{Name: "close", Text: "close up", Enabled: true},
		},
		BeforeText: "Edit:",
	})

	store, err := remote.NewSQLiteStoreWithPath(filepath.Join(t.TempDir(), "remote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	local, err := localstore.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	ledger := usage.NewLedger(usage.DefaultPriceTable(), local)

	syncer := autosave.New(autosave.Config{
		List:   list,
		Store:  store,
		UserID: "user-1",
		Logger: zerolog.Nop(),
	})

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	r := New(&Config{
		In:     strings.NewReader(""),
		Out:    out,
		Err:    errOut,
		List:   list,
		Syncer: syncer,
		Prefs:  prefs.New(local, models.DefaultRegistry()),
		Ledger: ledger,
		Store:  store,
		UserID: "user-1",
		Logger: zerolog.Nop(),
	})

	return &replFixture{repl: r, list: list, ledger: ledger, out: out, errOut: errOut}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"simple", "text 1 wide shot", []string{"text", "1", "wide", "shot"}},
		{"double quotes", `name 1 "wide angle"`, []string{"name", "1", "wide angle"}},
		{"single quotes", `before 'Edit this:'`, []string{"before", "Edit this:"}},
		{"mixed quotes", `text 1 "it's fine"`, []string{"text", "1", "it's fine"}},
		{"extra spaces", "list   ", []string{"list"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCommand(tt.line))
		})
	}
}

func TestParseIndex(t *testing.T) {
	n, err := parseIndex("1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = parseIndex("12")
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	_, err = parseIndex("one")
	assert.Error(t, err)
}

func TestExecute_UnknownCommand(t *testing.T) {
	f := newFixture(t)
	err := f.repl.execute(context.Background(), "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestExecute_EditCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repl.execute(ctx, "add"))
	require.NoError(t, f.repl.execute(ctx, `name 3 "overhead"`))
	require.NoError(t, f.repl.execute(ctx, "text 3 overhead view"))
	require.NoError(t, f.repl.execute(ctx, "disable 1"))
	require.NoError(t, f.repl.execute(ctx, "skip 2"))
	require.NoError(t, f.repl.execute(ctx, "move 3 1"))
	require.NoError(t, f.repl.execute(ctx, "before Style:"))
	require.NoError(t, f.repl.execute(ctx, "after high detail"))

	state := f.list.Snapshot()
	require.Len(t, state.Items, 3)
	assert.Equal(t, "overhead", state.Items[0].Name)
	assert.Equal(t, "overhead view", state.Items[0].Text)
	assert.False(t, state.Items[1].Enabled)
	assert.True(t, state.Items[2].SkipSurrounding)
	assert.Equal(t, "Style:", state.BeforeText)
	assert.Equal(t, "high detail", state.AfterText)
}

func TestExecute_RemoveCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repl.execute(ctx, "rm 1"))
	state := f.list.Snapshot()
	require.Len(t, state.Items, 1)
	assert.Equal(t, "close", state.Items[0].Name)

	assert.Error(t, f.repl.execute(ctx, "rm 5"))
}

func TestExecute_CaseInsensitiveAndAliases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repl.execute(ctx, "LS"))
	require.NoError(t, f.repl.execute(ctx, "off 1"))
	assert.False(t, f.list.Snapshot().Items[0].Enabled)
	require.NoError(t, f.repl.execute(ctx, "on 1"))
	assert.True(t, f.list.Snapshot().Items[0].Enabled)
}

func TestListCommand_Output(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.repl.execute(context.Background(), "list"))

	got := f.out.String()
	assert.Contains(t, got, "Before text: \"Edit:\"")
	assert.Contains(t, got, "[x] wide: wide shot")
	assert.Contains(t, got, "[x] close: close up")
}

func TestModelCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddCall(0, 0, 1290, "gemini-2.5-flash-image")
	require.NoError(t, err)

	require.NoError(t, f.repl.execute(ctx, "model gemini-3-pro-image-preview"))

	// The switch clears session counters but keeps lifetime totals.
	snap := f.ledger.Snapshot()
	assert.Zero(t, snap.Session.ImageCount)
	assert.Equal(t, int64(1), snap.LifetimeImageCount)

	assert.Error(t, f.repl.execute(ctx, "model no-such-model"))
}

func TestModelCommand_SameModelKeepsSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.AddCall(0, 0, 1290, "gemini-2.5-flash-image")
	require.NoError(t, err)

	require.NoError(t, f.repl.execute(context.Background(), "model gemini-2.5-flash-image"))
	assert.Equal(t, int64(1), f.ledger.Snapshot().Session.ImageCount)
}

func TestUsageCommand_Output(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.AddCall(500, 20, 1290, "gemini-2.5-flash-image")
	require.NoError(t, err)

	require.NoError(t, f.repl.execute(context.Background(), "usage"))

	got := f.out.String()
	assert.Contains(t, got, "Input tokens:        500")
	assert.Contains(t, got, "Output image tokens: 1290")
	assert.Contains(t, got, "$0.0390")
}

func TestSyncCommand_FlushesToStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repl.execute(ctx, "text 1 updated shot"))
	require.Equal(t, prompts.PhaseDirty, f.list.Phase())

	require.NoError(t, f.repl.execute(ctx, "sync"))
	assert.Equal(t, prompts.PhaseClean, f.list.Phase())
}

func TestQuitCommand_StopsLoop(t *testing.T) {
	f := newFixture(t)
	f.repl.running = true

	require.NoError(t, f.repl.execute(context.Background(), "quit"))
	assert.False(t, f.repl.running)
}

func TestHandleTaskUpdate_DropsStaleBatch(t *testing.T) {
	f := newFixture(t)

	f.repl.mu.Lock()
	f.repl.currentBatchID = "current"
	f.repl.runActive = false
	f.repl.mu.Unlock()

	f.repl.HandleTaskUpdate("stale", orchestrator.Task{
		PromptName: "old",
		Status:     orchestrator.StatusCompleted,
	})
	assert.Empty(t, f.out.String())

	f.repl.HandleTaskUpdate("current", orchestrator.Task{
		PromptName: "fresh",
		Status:     orchestrator.StatusCompleted,
	})
	assert.Contains(t, f.out.String(), "fresh")
}

func TestHandleTaskUpdate_AdoptsBatchWhileRunning(t *testing.T) {
	f := newFixture(t)

	f.repl.mu.Lock()
	f.repl.runActive = true
	f.repl.mu.Unlock()

	f.repl.HandleTaskUpdate("fresh-batch", orchestrator.Task{
		PromptName: "wide",
		Status:     orchestrator.StatusProcessing,
	})
	assert.Contains(t, f.out.String(), "Generating")

	f.repl.mu.Lock()
	got := f.repl.currentBatchID
	f.repl.mu.Unlock()
	assert.Equal(t, "fresh-batch", got)
}

func TestHelpCommand_ListsEachCommandOnce(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.repl.execute(context.Background(), "help"))

	got := f.out.String()
	assert.Equal(t, 1, strings.Count(got, "run"), "aliases must not duplicate entries")
	assert.Contains(t, got, "quit")
	assert.Contains(t, got, "sync")
}
