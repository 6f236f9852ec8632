package usage

// Gemini image generation pricing (USD)
// Source: https://ai.google.dev/gemini-api/docs/pricing

const tokensPerMillion = 1_000_000

// ModelPricing holds the four rates for a model. Token rates are USD per 1M
// tokens; FlatImageRate is USD per generated image. A model is priced either
// per output token or per image, never both — use the constructors below.
type ModelPricing struct {
	InputTokenRate       float64
	OutputTextTokenRate  float64
	OutputImageTokenRate float64
	FlatImageRate        float64
}

// PerTokenPricing builds a pricing entry billed by output tokens.
func PerTokenPricing(input, outputText, outputImage float64) ModelPricing {
	return ModelPricing{
		InputTokenRate:       input,
		OutputTextTokenRate:  outputText,
		OutputImageTokenRate: outputImage,
	}
}

// FlatImagePricing builds a pricing entry billed per generated image.
func FlatImagePricing(input, perImage float64) ModelPricing {
	return ModelPricing{
		InputTokenRate: input,
		FlatImageRate:  perImage,
	}
}

func (p ModelPricing) FlatRated() bool {
	return p.FlatImageRate > 0
}

// InputCost prices input tokens only.
func (p ModelPricing) InputCost(inputTokens int64) float64 {
	return float64(inputTokens) / tokensPerMillion * p.InputTokenRate
}

// OutputCost prices the output side of accumulated counters: per-token when
// token rates are set, otherwise flat per image.
func (p ModelPricing) OutputCost(outputTextTokens, outputImageTokens, imageCount int64) float64 {
	if p.FlatRated() {
		return float64(imageCount) * p.FlatImageRate
	}
	return float64(outputTextTokens)/tokensPerMillion*p.OutputTextTokenRate +
		float64(outputImageTokens)/tokensPerMillion*p.OutputImageTokenRate
}

// CallCost prices a single generation call producing one image.
func (p ModelPricing) CallCost(inputTokens, outputTextTokens, outputImageTokens int64) float64 {
	return p.InputCost(inputTokens) + p.OutputCost(outputTextTokens, outputImageTokens, 1)
}

type PriceTable map[string]ModelPricing

// Lookup returns the pricing for a model, or zero pricing when unknown.
// Unknown models accumulate tokens at no cost rather than failing the call.
func (t PriceTable) Lookup(model string) ModelPricing {
	return t[model]
}

func DefaultPriceTable() PriceTable {
	return PriceTable{
		"gemini-2.5-flash-image":     FlatImagePricing(0.30, 0.039),
		"gemini-3-pro-image-preview": PerTokenPricing(2.00, 12.00, 120.00),
	}
}
