package models

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrEmptyPrompt        = errors.New("prompt cannot be empty")
	ErrNoInputImages      = errors.New("at least one input image is required")
	ErrTooManyImages      = errors.New("too many input images for model")
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio for model")
	ErrInvalidImageSize   = errors.New("invalid image size for model")
	ErrInvalidTemperature = errors.New("temperature out of range for model")
)

// Request describes a single image-generation call: one composed prompt
// applied to a shared set of reference images.
type Request struct {
	Images      [][]byte
	Prompt      string
	AspectRatio string
	ImageSize   string
	Model       string
	Temperature float64
}

func NewRequest(prompt string, images [][]byte) *Request {
	return &Request{
		Prompt: prompt,
		Images: images,
	}
}

// TokenUsage is the usage metadata reported by the generation API for one call.
type TokenUsage struct {
	InputTokens       int64
	OutputTextTokens  int64
	OutputImageTokens int64
	TotalTokens       int64
}

// Response carries the generated image as a URL (a data: URL for inline
// payloads) together with the call's token usage.
type Response struct {
	ImageURL string
	Usage    TokenUsage
}

type ModelCapabilities struct {
	Name               string
	SupportedRatios    []string
	SupportedSizes     []string
	DefaultRatio       string
	DefaultSize        string
	DefaultTemperature float64
	MinTemperature     float64
	MaxTemperature     float64
	MaxInputImages     int
}

func (c *ModelCapabilities) ApplyDefaults(req *Request) {
	if req.AspectRatio == "" {
		req.AspectRatio = c.DefaultRatio
	}
	if req.ImageSize == "" {
		req.ImageSize = c.DefaultSize
	}
	if req.Temperature == 0 {
		req.Temperature = c.DefaultTemperature
	}
}

func (c *ModelCapabilities) Validate(req *Request) error {
	if req.Prompt == "" {
		return ErrEmptyPrompt
	}
	if len(req.Images) == 0 {
		return ErrNoInputImages
	}
	if c.MaxInputImages > 0 && len(req.Images) > c.MaxInputImages {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyImages, len(req.Images), c.MaxInputImages)
	}
	if req.AspectRatio != "" && !slices.Contains(c.SupportedRatios, req.AspectRatio) {
		return fmt.Errorf("%w: %q", ErrInvalidAspectRatio, req.AspectRatio)
	}
	if req.ImageSize != "" && !slices.Contains(c.SupportedSizes, req.ImageSize) {
		return fmt.Errorf("%w: %q", ErrInvalidImageSize, req.ImageSize)
	}
	if req.Temperature < c.MinTemperature || req.Temperature > c.MaxTemperature {
		return fmt.Errorf("%w: %g (allowed %g-%g)", ErrInvalidTemperature, req.Temperature, c.MinTemperature, c.MaxTemperature)
	}
	return nil
}

type ModelRegistry struct {
	models map[string]*ModelCapabilities
	order  []string
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{models: make(map[string]*ModelCapabilities)}
}

func (r *ModelRegistry) Register(caps *ModelCapabilities) {
	if _, exists := r.models[caps.Name]; !exists {
		r.order = append(r.order, caps.Name)
	}
	r.models[caps.Name] = caps
}

func (r *ModelRegistry) Get(name string) (*ModelCapabilities, bool) {
	caps, ok := r.models[name]
	return caps, ok
}

func (r *ModelRegistry) List() []string {
	return slices.Clone(r.order)
}

// DefaultRegistry returns the registry of supported Gemini image models.
func DefaultRegistry() *ModelRegistry {
	r := NewModelRegistry()
	r.Register(&ModelCapabilities{
		Name:               "gemini-2.5-flash-image",
		SupportedRatios:    []string{"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9"},
		SupportedSizes:     []string{"1K", "2K"},
		DefaultRatio:       "1:1",
		DefaultSize:        "1K",
		DefaultTemperature: 1.0,
		MinTemperature:     0,
		MaxTemperature:     2.0,
		MaxInputImages:     14,
	})
	r.Register(&ModelCapabilities{
		Name:               "gemini-3-pro-image-preview",
		SupportedRatios:    []string{"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9"},
		SupportedSizes:     []string{"1K", "2K", "4K"},
		DefaultRatio:       "1:1",
		DefaultSize:        "1K",
		DefaultTemperature: 1.0,
		MinTemperature:     0,
		MaxTemperature:     2.0,
		MaxInputImages:     14,
	})
	return r
}
