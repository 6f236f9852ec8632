package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ohyesboy/BananaPicGen/internal/provider"
	"github.com/ohyesboy/BananaPicGen/pkg/models"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 120 * time.Second
)

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type generationConfig struct {
	Temperature        float64      `json:"temperature"`
	ResponseModalities []string     `json:"responseModalities"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type apiRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type candidate struct {
	Content content `json:"content"`
}

type modalityTokens struct {
	Modality   string `json:"modality"`
	TokenCount int64  `json:"tokenCount"`
}

type usageMetadata struct {
	PromptTokenCount        int64            `json:"promptTokenCount"`
	CandidatesTokenCount    int64            `json:"candidatesTokenCount"`
	TotalTokenCount         int64            `json:"totalTokenCount"`
	CandidatesTokensDetails []modalityTokens `json:"candidatesTokensDetails"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type apiResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
	Error         *apiError      `json:"error,omitempty"`
}

type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	registry   *models.ModelRegistry
}

func New(cfg *provider.Config, registry *models.ModelRegistry) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		registry: registry,
	}, nil
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) SupportsModel(model string) bool {
	_, ok := p.registry.Get(model)
	return ok
}

func (p *Provider) ListModels() []string {
	return p.registry.List()
}

func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	apiReq := buildAPIRequest(req)

	jsonData, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if apiResp.Error != nil {
		if isCredentialError(resp.StatusCode, apiResp.Error) {
			return nil, fmt.Errorf("%w: %s", provider.ErrInvalidCredential, apiResp.Error.Message)
		}
		return nil, fmt.Errorf("%w: %s", provider.ErrGenerationFailed, apiResp.Error.Message)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", provider.ErrInvalidCredential, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", provider.ErrGenerationFailed, resp.StatusCode)
	}

	return buildResponse(&apiResp)
}

func buildAPIRequest(req *models.Request) *apiRequest {
	parts := make([]part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, part{
			InlineData: &inlineData{
				MimeType: http.DetectContentType(img),
				Data:     base64.StdEncoding.EncodeToString(img),
			},
		})
	}
	parts = append(parts, part{Text: req.Prompt})

	return &apiRequest{
		Contents: []content{{Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:        req.Temperature,
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig: &imageConfig{
				AspectRatio: req.AspectRatio,
				ImageSize:   req.ImageSize,
			},
		},
	}
}

func buildResponse(apiResp *apiResponse) (*models.Response, error) {
	var imageURL string
	for _, cand := range apiResp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				imageURL = fmt.Sprintf("data:%s;base64,%s", p.InlineData.MimeType, p.InlineData.Data)
				break
			}
		}
		if imageURL != "" {
			break
		}
	}

	if imageURL == "" {
		return nil, provider.ErrNoImageInResponse
	}

	resp := &models.Response{ImageURL: imageURL}
	if meta := apiResp.UsageMetadata; meta != nil {
		resp.Usage.InputTokens = meta.PromptTokenCount
		resp.Usage.TotalTokens = meta.TotalTokenCount
		for _, d := range meta.CandidatesTokensDetails {
			switch d.Modality {
			case "IMAGE":
				resp.Usage.OutputImageTokens += d.TokenCount
			default:
				resp.Usage.OutputTextTokens += d.TokenCount
			}
		}
		if len(meta.CandidatesTokensDetails) == 0 {
			resp.Usage.OutputImageTokens = meta.CandidatesTokenCount
		}
	}
	return resp, nil
}

func isCredentialError(status int, apiErr *apiError) bool {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return true
	}
	switch apiErr.Status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return true
	}
	return false
}
