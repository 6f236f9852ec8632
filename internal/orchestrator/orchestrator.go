package orchestrator

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ohyesboy/BananaPicGen/internal/prompts"
	"github.com/ohyesboy/BananaPicGen/internal/provider"
	"github.com/ohyesboy/BananaPicGen/internal/usage"
	"github.com/ohyesboy/BananaPicGen/pkg/models"
)

var (
	ErrNoPromptsEnabled = errors.New("no prompts are enabled")
	ErrNoInputImages    = errors.New("no input images selected")
	ErrNoCredential     = errors.New("no verified credential available")
)

// CredentialChecker reports whether a verified credential is available
// before a batch may start.
type CredentialChecker interface {
	HasValidCredential() bool
}

// Options are the generation parameters shared by every task in a batch.
type Options struct {
	Model       string
	AspectRatio string
	ImageSize   string
	Temperature float64
}

// Result summarizes one finished (or aborted) batch run. AuthRequired is
// raised when the run stopped early on a credential failure; the caller is
// expected to surface a re-authentication prompt.
type Result struct {
	Batch        *Batch
	Completed    int
	Failed       int
	AuthRequired bool
}

type Config struct {
	Provider    provider.Provider
	Ledger      *usage.Ledger
	Credentials CredentialChecker
	Logger      zerolog.Logger

	// OnTaskUpdate is fired synchronously on every task status transition
	// with the batch id, so callers can drop updates for a batch they have
	// already discarded.
	OnTaskUpdate func(batchID string, task Task)
}

// Orchestrator executes batches strictly sequentially: one generation call
// at a time, in list order, suspending between tasks only for the call
// itself. Task failures are contained per task; a credential failure aborts
// the rest of the batch.
type Orchestrator struct {
	provider provider.Provider
	ledger   *usage.Ledger
	creds    CredentialChecker
	log      zerolog.Logger
	onUpdate func(batchID string, task Task)
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		provider: cfg.Provider,
		ledger:   cfg.Ledger,
		creds:    cfg.Credentials,
		log:      cfg.Logger,
		onUpdate: cfg.OnTaskUpdate,
	}
}

// Run builds a fresh batch from the current prompt snapshot and executes
// it. Precondition failures are returned as distinct errors before any task
// runs; per-task failures never unwind the loop except for an invalid
// credential, which stops the batch and leaves later tasks pending forever.
func (o *Orchestrator) Run(ctx context.Context, state prompts.State, images [][]byte, opts Options) (*Result, error) {
	if len(state.EnabledItems()) == 0 {
		return nil, ErrNoPromptsEnabled
	}
	if len(images) == 0 {
		return nil, ErrNoInputImages
	}
	if o.creds != nil && !o.creds.HasValidCredential() {
		return nil, ErrNoCredential
	}

	batch := BuildBatch(state, images)
	result := &Result{Batch: batch}

	for i := range batch.Tasks {
		task := &batch.Tasks[i]
		o.log.Info().
			Str("batch", batch.ID).
			Str("task", task.ID).
			Str("prompt", task.PromptName).
			Msg("task queued")
		o.notify(batch.ID, *task)

		task.Status = StatusProcessing
		o.log.Info().
			Str("batch", batch.ID).
			Str("task", task.ID).
			Str("prompt", task.PromptName).
			Msg("task started")
		o.notify(batch.ID, *task)

		req := models.NewRequest(task.Prompt, task.Images)
		req.Model = opts.Model
		req.AspectRatio = opts.AspectRatio
		req.ImageSize = opts.ImageSize
		req.Temperature = opts.Temperature

		resp, err := o.provider.Generate(ctx, req)
		if err != nil {
			task.Status = StatusFailed
			task.ErrorMessage = err.Error()
			result.Failed++
			o.log.Error().
				Str("batch", batch.ID).
				Str("task", task.ID).
				Err(err).
				Msg("task failed")
			o.notify(batch.ID, *task)

			if errors.Is(err, provider.ErrInvalidCredential) {
				result.AuthRequired = true
				o.log.Warn().
					Str("batch", batch.ID).
					Msg("credential rejected, aborting batch")
				break
			}
			continue
		}

		task.Status = StatusCompleted
		task.ResultURL = resp.ImageURL
		result.Completed++

		cost, perr := o.ledger.AddCall(
			resp.Usage.InputTokens,
			resp.Usage.OutputTextTokens,
			resp.Usage.OutputImageTokens,
			opts.Model,
		)
		if perr != nil {
			o.log.Warn().Err(perr).Msg("failed to persist usage snapshot")
		}

		o.log.Info().
			Str("batch", batch.ID).
			Str("task", task.ID).
			Int64("tokens", resp.Usage.TotalTokens).
			Float64("cost", cost).
			Msg("task succeeded")
		o.notify(batch.ID, *task)
	}

	return result, nil
}

func (o *Orchestrator) notify(batchID string, task Task) {
	if o.onUpdate != nil {
		o.onUpdate(batchID, task)
	}
}
