package remote

import (
	"context"
	"errors"
	"time"

	"github.com/ohyesboy/BananaPicGen/internal/prompts"
)

var ErrNotFound = errors.New("not found")

// Document is the serialized prompt-list snapshot held by the authoritative
// remote store. Revision is the sender's monotonically increasing counter;
// the syncer uses it to recognize echoes of its own writes.
type Document struct {
	State     prompts.State
	Revision  int64
	UpdatedAt time.Time
}

type LifetimeUsage struct {
	LifetimeCost       float64
	LifetimeImageCount int64
}

// Store is the opaque authenticated key-value document store, keyed by
// user. Shared across processes for a user; no distributed locking — the
// dirty-flag gate and larger-value-wins merge are the only safety
// mechanisms.
type Store interface {
	ReadPromptDocument(ctx context.Context, userID string) (*Document, error)
	WritePromptDocument(ctx context.Context, userID string, doc *Document) error
	ReadLifetimeUsage(ctx context.Context, userID string) (*LifetimeUsage, error)
	WriteLifetimeUsage(ctx context.Context, userID string, u *LifetimeUsage) error
}
