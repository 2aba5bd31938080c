package gemini

// Config holds the configuration for the Gemini provider module.
type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// Models is the allow-list of model identifiers sessions may open.
	// The application config's models list, when set, replaces it.
	Models []string `yaml:"models"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://generativelanguage.googleapis.com"
	}
}
