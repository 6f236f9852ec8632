// Package autosave reconciles the in-memory prompt list with the
// authoritative remote document: debounced quiet-period flushes outbound,
// dirty-gated and revision-gated application inbound.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ohyesboy/BananaPicGen/internal/prompts"
	"github.com/ohyesboy/BananaPicGen/internal/remote"
)

const (
	DefaultTickInterval   = 1 * time.Second
	DefaultQuietThreshold = 5 * time.Second
)

type Config struct {
	List   *prompts.List
	Store  remote.Store
	UserID string
	Logger zerolog.Logger

	// TickInterval and QuietThreshold are configuration, not law; zero
	// values take the defaults.
	TickInterval   time.Duration
	QuietThreshold time.Duration
	Now            func() time.Time
}

type Syncer struct {
	list   *prompts.List
	store  remote.Store
	userID string
	log    zerolog.Logger
	tick   time.Duration
	quiet  time.Duration
	now    func() time.Time

	// lastRevision is the highest revision this syncer has flushed or
	// loaded. Inbound documents at or below it are echoes of our own
	// writes and are never re-applied.
	revMu        sync.Mutex
	lastRevision int64
}

func (s *Syncer) loadRevision() int64 {
	s.revMu.Lock()
	defer s.revMu.Unlock()
	return s.lastRevision
}

func (s *Syncer) storeRevision(rev int64) {
	s.revMu.Lock()
	if rev > s.lastRevision {
		s.lastRevision = rev
	}
	s.revMu.Unlock()
}

func New(cfg Config) *Syncer {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	quiet := cfg.QuietThreshold
	if quiet <= 0 {
		quiet = DefaultQuietThreshold
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Syncer{
		list:   cfg.List,
		store:  cfg.Store,
		userID: cfg.UserID,
		log:    cfg.Logger,
		tick:   tick,
		quiet:  quiet,
		now:    now,
	}
}

// LoadInitial reads the remote document and initializes the list from it.
// A missing document initializes an empty list; the list then owns state
// and later remote snapshots go through ApplyRemote.
func (s *Syncer) LoadInitial(ctx context.Context) error {
	doc, err := s.store.ReadPromptDocument(ctx, s.userID)
	if err == remote.ErrNotFound {
		s.list.Initialize(prompts.State{})
		return nil
	}
	if err != nil {
		return err
	}

	s.storeRevision(doc.Revision)
	s.list.Initialize(doc.State)
	return nil
}

// Run drives the quiet-period flush check until the context is canceled.
// Flush failures are logged and retried on a later tick, never propagated.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.FlushIfQuiet(ctx)
		}
	}
}

// FlushIfQuiet flushes when the list is dirty and the quiet threshold has
// elapsed since the last edit. Reports whether a flush was attempted.
func (s *Syncer) FlushIfQuiet(ctx context.Context) bool {
	if !s.list.QuietSince(s.now(), s.quiet) {
		return false
	}
	if err := s.Flush(ctx); err != nil {
		s.log.Warn().Err(err).Msg("autosave flush failed, will retry")
	}
	return true
}

// Flush sends the current snapshot to the remote store under the next local
// revision. Edits arriving while the write is in flight keep the list
// dirty, so the following tick picks them up.
func (s *Syncer) Flush(ctx context.Context) error {
	state, ok := s.list.BeginFlush()
	if !ok {
		return nil
	}

	rev := s.loadRevision() + 1
	doc := &remote.Document{
		State:     state,
		Revision:  rev,
		UpdatedAt: s.now(),
	}

	err := s.store.WritePromptDocument(ctx, s.userID, doc)
	if err == nil {
		s.storeRevision(rev)
		s.log.Debug().Int64("revision", rev).Msg("prompt document flushed")
	}
	s.list.EndFlush(err == nil)
	return err
}

// ApplyRemote offers an inbound remote document to the list. It is dropped
// when it is an echo of our own flush (revision not newer than the last one
// we sent) or when unflushed local edits are pending.
func (s *Syncer) ApplyRemote(doc *remote.Document) bool {
	if doc.Revision != 0 && doc.Revision <= s.loadRevision() {
		return false
	}
	if !s.list.ApplyRemote(doc.State) {
		return false
	}
	s.storeRevision(doc.Revision)
	return true
}

// LastRevision returns the highest revision flushed or accepted so far.
func (s *Syncer) LastRevision() int64 {
	return s.loadRevision()
}
