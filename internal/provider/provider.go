package provider

import (
	"context"
	"errors"

	"github.com/ohyesboy/BananaPicGen/pkg/models"
)

var (
	ErrAPIKeyRequired    = errors.New("API key is required")
	ErrInvalidCredential = errors.New("invalid or expired credential")
	ErrGenerationFailed  = errors.New("image generation failed")
	ErrNoImageInResponse = errors.New("no image in response")
)

// Provider is the opaque generation call: one request in, one image plus
// token usage out. Implementations map their transport errors onto the
// sentinel errors above so callers can branch with errors.Is.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *models.Request) (*models.Response, error)
	SupportsModel(model string) bool
	ListModels() []string
}

type Config struct {
	APIKey     string
	BaseURL    string
	TimeoutSec int
}
