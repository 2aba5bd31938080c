// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for troupe.
package config

import (
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/troupelabs/troupe/internal/pricing"
	"github.com/troupelabs/troupe/internal/tracer"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "provider.gemini").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Models is the allow-list of model identifiers sessions may use.
	// When empty, the models known to the pricing table are allowed.
	Models []string `yaml:"models,omitempty"`

	// Pricing overrides or extends the built-in price table.
	// Values are USD per one million tokens.
	Pricing map[string]PriceEntry `yaml:"pricing,omitempty"`

	// Characters points at the directory of TOML character sheets.
	Characters CharactersConfig `yaml:"characters"`

	// Conversation describes the scripted conversation to run.
	Conversation ConversationConfig `yaml:"conversation"`

	// Tracing configures OpenTelemetry span export.
	Tracing tracer.Config `yaml:"tracing,omitempty"`
}

// PriceEntry is a per-model price override, in USD per one million tokens.
type PriceEntry struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// CharactersConfig locates character sheets on disk.
type CharactersConfig struct {
	// Dir is scanned non-recursively for *.toml sheets.
	Dir string `yaml:"dir"`
}

// ConversationConfig describes one scripted multi-party conversation.
type ConversationConfig struct {
	// Cast lists character names, in speaking order. Every name must match
	// a character sheet.
	Cast []string `yaml:"cast"`

	// Opening is the prompt handed to the first speaker.
	Opening string `yaml:"opening"`

	// Turns is the total number of turns to run across the cast.
	Turns int `yaml:"turns"`

	// Narrate speaks each response aloud through the configured
	// speech synthesizer.
	Narrate bool `yaml:"narrate,omitempty"`

	// Flush controls periodic history persistence.
	Flush FlushConfig `yaml:"flush,omitempty"`
}

// FlushConfig controls when and where session history is persisted.
type FlushConfig struct {
	// Schedule is a cron expression. Empty disables the periodic job;
	// history is still flushed once when the conversation ends.
	Schedule string `yaml:"schedule,omitempty"`

	// Destination names the logical bucket records are persisted under.
	Destination string `yaml:"destination"`
}

// PriceTable merges the built-in price table with any configured overrides.
// Config values are per one million tokens; the returned table is per token.
func (c *Config) PriceTable() pricing.Table {
	table := pricing.DefaultTable()
	for model, entry := range c.Pricing {
		table[model] = pricing.Price{
			Input:  entry.Input / 1e6,
			Output: entry.Output / 1e6,
		}
	}
	return table
}

// AllowedModels returns the model allow-list: the configured list when
// present, otherwise every model the price table knows, sorted.
func (c *Config) AllowedModels() []string {
	if len(c.Models) > 0 {
		return slices.Clone(c.Models)
	}
	table := c.PriceTable()
	models := make([]string, 0, len(table))
	for model := range table {
		models = append(models, model)
	}
	slices.Sort(models)
	return models
}
