// Package character loads TOML character sheets. A sheet binds a cast
// member's name to a model, a persona, an optional synthesizer voice, and
// generation option overrides for their session.
package character

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalidSheet is returned when a sheet fails structural validation.
var ErrInvalidSheet = errors.New("invalid character sheet")

// Sheet is one character definition.
type Sheet struct {
	// Name identifies the character; it becomes the session name and must
	// be unique within a directory. Lowercase by convention.
	Name string `toml:"name"`

	// Model is the model identifier the character speaks through.
	Model string `toml:"model"`

	// Persona is the character's system instruction.
	Persona string `toml:"persona"`

	// Voice selects the synthesizer voice for narration. Optional.
	Voice string `toml:"voice"`

	// Options holds generation option overrides, passed through to the
	// session's configuration builder.
	Options map[string]any `toml:"options"`
}

// SessionOptions returns the option map for the character's session: the
// sheet's overrides plus the persona as system instruction. An explicit
// system_instruction override wins over the persona.
func (s *Sheet) SessionOptions() map[string]any {
	opts := make(map[string]any, len(s.Options)+1)
	for k, v := range s.Options {
		opts[k] = v
	}
	if s.Persona != "" {
		if _, explicit := opts["system_instruction"]; !explicit {
			opts["system_instruction"] = s.Persona
		}
	}
	return opts
}

// Load reads and validates one sheet. Unknown keys are rejected so a typo
// in a sheet fails loudly instead of silently dropping an option.
func Load(path string) (*Sheet, error) {
	var sheet Sheet
	md, err := toml.DecodeFile(path, &sheet)
	if err != nil {
		return nil, fmt.Errorf("character: parsing %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: %s: unknown keys: %s", ErrInvalidSheet, path, strings.Join(keys, ", "))
	}

	if sheet.Name == "" {
		return nil, fmt.Errorf("%w: %s: name is required", ErrInvalidSheet, path)
	}
	if sheet.Model == "" {
		return nil, fmt.Errorf("%w: %s: model is required", ErrInvalidSheet, path)
	}
	return &sheet, nil
}

// LoadDir loads every *.toml sheet in dir (non-recursive), keyed by
// character name.
func LoadDir(dir string) (map[string]*Sheet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("character: reading %s: %w", dir, err)
	}

	sheets := make(map[string]*Sheet)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		sheet, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := sheets[sheet.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate character %q in %s", ErrInvalidSheet, sheet.Name, dir)
		}
		sheets[sheet.Name] = sheet
	}

	return sheets, nil
}
