// Package pricing converts accumulated token counts into monetary
// estimates using a static per-model price table.
package pricing

import (
	"errors"
	"fmt"
)

// ErrUnknownPricing indicates a cost lookup for a model absent from the
// price table. This is a configuration gap, not a recoverable condition.
var ErrUnknownPricing = errors.New("no pricing entry for model")

// Price holds per-single-token USD rates for one model.
type Price struct {
	Input  float64
	Output float64
}

// Table maps model identifiers to their prices. It is kept current
// manually and is not validated against any live pricing source.
type Table map[string]Price

// DefaultTable carries the compiled-in rates for the supported models,
// expressed in USD per token (the published per-million rates divided
// by 1e6).
func DefaultTable() Table {
	return Table{
		"gemini-2.5-pro":        {Input: 1.25 / 1e6, Output: 10.0 / 1e6},
		"gemini-2.5-flash":      {Input: 0.30 / 1e6, Output: 2.50 / 1e6},
		"gemini-2.5-flash-lite": {Input: 0.10 / 1e6, Output: 0.40 / 1e6},
		"gemini-2.0-flash":      {Input: 0.10 / 1e6, Output: 0.40 / 1e6},
	}
}

// Estimate computes the cost of the given token counts for a model.
// It has no side effects and does not reset any counters.
func (t Table) Estimate(model string, inputTokens, outputTokens int) (float64, error) {
	price, ok := t[model]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPricing, model)
	}
	return float64(inputTokens)*price.Input + float64(outputTokens)*price.Output, nil
}
