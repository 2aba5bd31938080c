package pricing_test

import (
	"errors"
	"math"
	"testing"

	"github.com/troupelabs/troupe/internal/pricing"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	table := pricing.Table{
		"gemini-2.5-flash": {Input: 0.30 / 1e6, Output: 1.5 / 1e6},
	}

	got, err := table.Estimate("gemini-2.5-flash", 1000, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 0.00105
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Estimate = %v, want %v", got, want)
	}
}

func TestEstimate_ZeroCounters(t *testing.T) {
	t.Parallel()

	table := pricing.DefaultTable()
	got, err := table.Estimate("gemini-2.5-flash", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("Estimate = %v, want 0", got)
	}
}

func TestEstimate_UnknownModel(t *testing.T) {
	t.Parallel()

	table := pricing.DefaultTable()
	_, err := table.Estimate("gemini-0.1-nano", 10, 10)
	if !errors.Is(err, pricing.ErrUnknownPricing) {
		t.Fatalf("want ErrUnknownPricing, got %v", err)
	}
}
