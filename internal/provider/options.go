package provider

import (
	"fmt"
	"slices"
	"sort"
)

// ToolMode governs how the model may invoke tools.
type ToolMode string

// ToolMode values accepted by tool_selection_mode.
const (
	ToolModeAuto ToolMode = "AUTO"
	ToolModeAny  ToolMode = "ANY"
	ToolModeNone ToolMode = "NONE"
)

// HarmCategory is a safety-filter category.
type HarmCategory string

// The five harm categories accepted in safety_settings.
const (
	HarmHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmSexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
	HarmCivicIntegrity   HarmCategory = "HARM_CATEGORY_CIVIC_INTEGRITY"
)

// BlockThreshold is a safety-filter blocking level.
type BlockThreshold string

// The three block thresholds accepted in safety_settings.
const (
	BlockLowAndAbove    BlockThreshold = "BLOCK_LOW_AND_ABOVE"
	BlockMediumAndAbove BlockThreshold = "BLOCK_MEDIUM_AND_ABOVE"
	BlockOnlyHigh       BlockThreshold = "BLOCK_ONLY_HIGH"
)

// SafetySetting pairs a harm category with its block threshold.
type SafetySetting struct {
	Category  HarmCategory
	Threshold BlockThreshold
}

// GenerationConfig is a validated, immutable bundle of generation
// parameters, produced by BuildConfig and bound to a chat channel for its
// lifetime. A nil pointer field means the option was not set and the
// provider default applies.
type GenerationConfig struct {
	SystemInstruction string
	Tools             []string
	ToolSelectionMode ToolMode // empty = unset
	AllowedTools      []string
	SafetySettings    []SafetySetting // sorted by category
	Temperature       *float64
	TopP              *float64
	TopK              *int
	MaxOutputTokens   *int
	ResponseMIMEType  string
}

// DefaultResponseMIMEType applies when response_mime_type is not given.
const DefaultResponseMIMEType = "text/plain"

// optionKeys is the closed set of accepted option names, in validation
// order. This is the entire surface for customizing generation behavior.
var optionKeys = []string{
	"system_instruction",
	"tools",
	"tool_selection_mode",
	"allowed_tools",
	"safety_settings",
	"temperature",
	"top_p",
	"top_k",
	"max_output_tokens",
	"response_mime_type",
}

var validToolModes = []ToolMode{ToolModeAuto, ToolModeAny, ToolModeNone}

var validHarmCategories = []HarmCategory{
	HarmHarassment,
	HarmHateSpeech,
	HarmSexuallyExplicit,
	HarmDangerousContent,
	HarmCivicIntegrity,
}

var validBlockThresholds = []BlockThreshold{
	BlockLowAndAbove,
	BlockMediumAndAbove,
	BlockOnlyHigh,
}

// BuildConfig validates a flat set of named generation options and produces
// a normalized, provider-ready GenerationConfig. It is a pure function:
// unknown option names reject the whole call, each present option is
// independently range- and type-checked, and the first violation fails with
// an error naming the offending key and the expected constraint. All
// returned errors wrap ErrInvalidConfig.
func BuildConfig(options map[string]any) (*GenerationConfig, error) {
	if err := rejectUnknownKeys(options); err != nil {
		return nil, err
	}

	cfg := &GenerationConfig{ResponseMIMEType: DefaultResponseMIMEType}

	for _, key := range optionKeys {
		raw, present := options[key]
		if !present {
			continue
		}
		if err := applyOption(cfg, key, raw); err != nil {
			return nil, err
		}
	}

	// Cross-field constraint: allowed_tools implies tool_selection_mode.
	if len(cfg.AllowedTools) > 0 {
		if cfg.ToolSelectionMode == "" {
			return nil, fmt.Errorf("%w: allowed_tools: requires tool_selection_mode to be set", ErrInvalidConfig)
		}
		for _, name := range cfg.AllowedTools {
			if !slices.Contains(cfg.Tools, name) {
				return nil, fmt.Errorf("%w: allowed_tools: %q is not in tools", ErrInvalidConfig, name)
			}
		}
	}

	return cfg, nil
}

func rejectUnknownKeys(options map[string]any) error {
	var unknown []string
	for key := range options {
		if !slices.Contains(optionKeys, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: unknown option %q", ErrInvalidConfig, unknown[0])
}

func applyOption(cfg *GenerationConfig, key string, raw any) error {
	switch key {
	case "system_instruction":
		s, ok := raw.(string)
		if !ok {
			return typeErr(key, "a string", raw)
		}
		cfg.SystemInstruction = s

	case "tools":
		names, ok := stringSlice(raw)
		if !ok {
			return typeErr(key, "a list of strings", raw)
		}
		cfg.Tools = names

	case "tool_selection_mode":
		s, ok := raw.(string)
		if !ok {
			return typeErr(key, "a string", raw)
		}
		mode := ToolMode(s)
		if !slices.Contains(validToolModes, mode) {
			return fmt.Errorf("%w: %s: must be one of AUTO, ANY, NONE; got %q", ErrInvalidConfig, key, s)
		}
		cfg.ToolSelectionMode = mode

	case "allowed_tools":
		names, ok := stringSlice(raw)
		if !ok {
			return typeErr(key, "a list of strings", raw)
		}
		cfg.AllowedTools = names

	case "safety_settings":
		settings, err := safetySettings(raw)
		if err != nil {
			return err
		}
		cfg.SafetySettings = settings

	case "temperature":
		f, ok := floatValue(raw)
		if !ok || f < 0.0 || f > 2.0 {
			return fmt.Errorf("%w: %s: must be a number in [0.0, 2.0]; got %v", ErrInvalidConfig, key, raw)
		}
		cfg.Temperature = &f

	case "top_p":
		f, ok := floatValue(raw)
		if !ok || f < 0.0 || f > 1.0 {
			return fmt.Errorf("%w: %s: must be a number in [0.0, 1.0]; got %v", ErrInvalidConfig, key, raw)
		}
		cfg.TopP = &f

	case "top_k":
		n, ok := intValue(raw)
		if !ok || n < 0 {
			return fmt.Errorf("%w: %s: must be a non-negative integer; got %v", ErrInvalidConfig, key, raw)
		}
		cfg.TopK = &n

	case "max_output_tokens":
		n, ok := intValue(raw)
		if !ok || n <= 0 {
			return fmt.Errorf("%w: %s: must be a positive integer; got %v", ErrInvalidConfig, key, raw)
		}
		cfg.MaxOutputTokens = &n

	case "response_mime_type":
		s, ok := raw.(string)
		if !ok {
			return typeErr(key, "a string", raw)
		}
		if s != "" {
			cfg.ResponseMIMEType = s
		}
	}
	return nil
}

// safetySettings validates the category→threshold mapping. Unknown keys or
// values reject the whole configuration. The result is sorted by category
// so that equal inputs produce structurally equal configs.
func safetySettings(raw any) ([]SafetySetting, error) {
	m, ok := stringMap(raw)
	if !ok {
		return nil, typeErr("safety_settings", "a mapping of category to threshold", raw)
	}

	settings := make([]SafetySetting, 0, len(m))
	for cat, thr := range m {
		category := HarmCategory(cat)
		if !slices.Contains(validHarmCategories, category) {
			return nil, fmt.Errorf("%w: safety_settings: unknown harm category %q", ErrInvalidConfig, cat)
		}
		threshold := BlockThreshold(thr)
		if !slices.Contains(validBlockThresholds, threshold) {
			return nil, fmt.Errorf("%w: safety_settings: unknown block threshold %q for %q", ErrInvalidConfig, thr, cat)
		}
		settings = append(settings, SafetySetting{Category: category, Threshold: threshold})
	}

	slices.SortFunc(settings, func(a, b SafetySetting) int {
		switch {
		case a.Category < b.Category:
			return -1
		case a.Category > b.Category:
			return 1
		default:
			return 0
		}
	})
	return settings, nil
}

func typeErr(key, want string, got any) error {
	return fmt.Errorf("%w: %s: must be %s; got %T", ErrInvalidConfig, key, want, got)
}

// floatValue coerces YAML/TOML scalar decodings to float64.
func floatValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// intValue coerces YAML/TOML scalar decodings to int, rejecting fractional
// floats.
func intValue(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// stringSlice coerces []string or []any-of-strings.
func stringSlice(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return slices.Clone(v), true
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// stringMap coerces map[string]string or map[string]any-of-strings.
func stringMap(raw any) (map[string]string, bool) {
	switch v := raw.(type) {
	case map[string]string:
		return v, true
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}
