package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// envExpr matches ${VAR} and ${VAR:-default}. A default may contain any
// character except an unescaped closing brace.
var envExpr = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the YAML configuration at path. Environment references are
// expanded before parsing, so a variable may carry any YAML fragment.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// expandEnv substitutes ${VAR} and ${VAR:-default} occurrences. A reference
// without a default whose variable is unset is an error; all such names are
// reported together.
func expandEnv(raw []byte) ([]byte, error) {
	missing := map[string]struct{}{}

	var out bytes.Buffer
	last := 0
	for _, loc := range envExpr.FindAllSubmatchIndex(raw, -1) {
		out.Write(raw[last:loc[0]])
		last = loc[1]

		name := string(raw[loc[2]:loc[3]])
		if value, ok := os.LookupEnv(name); ok {
			out.WriteString(value)
			continue
		}
		if loc[4] >= 0 { // default present, possibly empty
			out.Write(raw[loc[4]:loc[5]])
			continue
		}
		missing[name] = struct{}{}
	}
	out.Write(raw[last:])

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		var errs []error
		for _, name := range names {
			errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		}
		return nil, errors.Join(errs...)
	}
	return out.Bytes(), nil
}
