package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/troupelabs/troupe/internal/core"
)

// Validate checks the structural validity of a Config. It verifies the
// version field, checks that all referenced module IDs exist in the
// registry, that exactly one provider module is configured, and that the
// conversation and pricing sections are internally consistent.
// All violations are reported at once as a joined error.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	var providers []string
	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
		if strings.HasPrefix(id, "provider.") {
			providers = append(providers, id)
		}
	}
	switch {
	case len(providers) == 0 && len(cfg.Modules) > 0:
		errs = append(errs, errors.New("config: a provider module is required"))
	case len(providers) > 1:
		slices.Sort(providers)
		errs = append(errs, fmt.Errorf("config: multiple provider modules configured: %s", strings.Join(providers, ", ")))
	}

	errs = append(errs, validatePricing(cfg.Pricing)...)
	errs = append(errs, validateConversation(&cfg.Conversation)...)

	return errors.Join(errs...)
}

func validatePricing(pricing map[string]PriceEntry) []error {
	var errs []error
	for model, entry := range pricing {
		if entry.Input < 0 || entry.Output < 0 {
			errs = append(errs, fmt.Errorf("config: pricing[%q]: prices must be non-negative", model))
		}
	}
	return errs
}

func validateConversation(conv *ConversationConfig) []error {
	var errs []error

	if len(conv.Cast) == 0 {
		errs = append(errs, errors.New("config: conversation.cast must name at least one character"))
	}
	seen := make(map[string]bool, len(conv.Cast))
	for i, name := range conv.Cast {
		if name == "" {
			errs = append(errs, fmt.Errorf("config: conversation.cast[%d]: name is required", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("config: conversation.cast: duplicate character %q", name))
		}
		seen[name] = true
	}

	if conv.Turns <= 0 {
		errs = append(errs, errors.New("config: conversation.turns must be positive"))
	}
	if conv.Opening == "" {
		errs = append(errs, errors.New("config: conversation.opening is required"))
	}
	if conv.Flush.Schedule != "" && conv.Flush.Destination == "" {
		errs = append(errs, errors.New("config: conversation.flush.destination is required when a schedule is set"))
	}

	return errs
}
