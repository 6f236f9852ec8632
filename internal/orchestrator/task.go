package orchestrator

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ohyesboy/BananaPicGen/internal/prompts"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Task is one generation call: a composed prompt applied to the batch's
// shared image set. Status transitions are monotonic
// (pending -> processing -> completed|failed) and tasks are never
// re-queued.
type Task struct {
	ID           string
	PromptName   string
	Prompt       string
	Images       [][]byte
	Status       Status
	ResultURL    string
	ErrorMessage string
}

// Batch is one orchestrator run: a fixed task list built from the prompt
// list and the selected images at start time. Re-running produces a fresh
// batch with fresh ids, never a merge with a previous one.
type Batch struct {
	ID    string
	Tasks []Task
}

// ComposePrompt wraps an item's text in the shared before/after text unless
// the item opts out. Non-empty segments are joined with a newline.
func ComposePrompt(before, after string, item prompts.Item) string {
	if item.SkipSurrounding {
		return item.Text
	}
	segments := make([]string, 0, 3)
	for _, s := range []string{before, item.Text, after} {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return strings.Join(segments, "\n")
}

// BuildBatch constructs the task queue: one task per enabled prompt in list
// order, every task carrying the identical image set.
func BuildBatch(state prompts.State, images [][]byte) *Batch {
	batch := &Batch{ID: uuid.New().String()}
	for _, item := range state.Items {
		if !item.Enabled {
			continue
		}
		batch.Tasks = append(batch.Tasks, Task{
			ID:         uuid.New().String(),
			PromptName: item.Name,
			Prompt:     ComposePrompt(state.BeforeText, state.AfterText, item),
			Images:     images,
			Status:     StatusPending,
		})
	}
	return batch
}
