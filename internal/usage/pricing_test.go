package usage

import (
	"math"
	"testing"
)

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFlatImagePricing(t *testing.T) {
	p := FlatImagePricing(0.30, 0.039)

	if !p.FlatRated() {
		t.Error("FlatImagePricing should be flat rated")
	}
	if p.OutputTextTokenRate != 0 || p.OutputImageTokenRate != 0 {
		t.Error("flat pricing must not carry per-token output rates")
	}
}

func TestPerTokenPricing(t *testing.T) {
	p := PerTokenPricing(2.00, 12.00, 120.00)

	if p.FlatRated() {
		t.Error("PerTokenPricing should not be flat rated")
	}
	if p.FlatImageRate != 0 {
		t.Error("per-token pricing must not carry a flat image rate")
	}
}

func TestModelPricing_CallCost(t *testing.T) {
	tests := []struct {
		name      string
		pricing   ModelPricing
		input     int64
		outText   int64
		outImage  int64
		wantTotal float64
	}{
		{
			name:      "flat rate ignores output tokens",
			pricing:   FlatImagePricing(0, 0.039),
			input:     0,
			outText:   100,
			outImage:  1290,
			wantTotal: 0.039,
		},
		{
			name:      "flat rate with input tokens",
			pricing:   FlatImagePricing(0.30, 0.039),
			input:     1_000_000,
			outImage:  1290,
			wantTotal: 0.339,
		},
		{
			name:      "per token output",
			pricing:   PerTokenPricing(2.00, 12.00, 120.00),
			input:     500_000,
			outText:   250_000,
			outImage:  1_000_000,
			wantTotal: 1.0 + 3.0 + 120.0,
		},
		{
			name:      "zero pricing",
			pricing:   ModelPricing{},
			input:     1000,
			outImage:  1290,
			wantTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.pricing.CallCost(tt.input, tt.outText, tt.outImage)
			if !floatEquals(got, tt.wantTotal) {
				t.Errorf("CallCost() = %v, want %v", got, tt.wantTotal)
			}
		})
	}
}

func TestPriceTable_Lookup(t *testing.T) {
	table := DefaultPriceTable()

	flash := table.Lookup("gemini-2.5-flash-image")
	if !flash.FlatRated() {
		t.Error("gemini-2.5-flash-image should be flat rated")
	}

	unknown := table.Lookup("no-such-model")
	if unknown.CallCost(1_000_000, 0, 1_000_000) != 0 {
		t.Error("unknown model should price at zero")
	}
}
