package azure

import (
	"fmt"
	"time"
)

// Config holds the configuration for the Azure TTS module.
type Config struct {
	SubscriptionKey string `yaml:"subscription_key"`
	Region          string `yaml:"region"`

	// Endpoint overrides the regional endpoint. Used in tests.
	Endpoint string `yaml:"endpoint"`

	// DefaultVoice is used when a character sheet names no voice.
	DefaultVoice string `yaml:"default_voice"`

	// Rate is the SSML prosody rate, e.g. "+10.00%".
	Rate string `yaml:"rate"`

	// OutputFormat is the X-Microsoft-OutputFormat header value.
	OutputFormat string `yaml:"output_format"`

	// OutputDir receives the synthesized audio files. Defaults to
	// <data_dir>/narration.
	OutputDir string `yaml:"output_dir"`

	Timeout string `yaml:"timeout"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.DefaultVoice == "" {
		c.DefaultVoice = "en-US-JennyNeural"
	}
	if c.Rate == "" {
		c.Rate = "+0.00%"
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "audio-24khz-48kbitrate-mono-mp3"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

// endpointURL returns the synthesis endpoint, regional unless overridden.
func (c *Config) endpointURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", c.Region)
}

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated by validateTimeout.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// validateTimeout checks that the timeout string is a valid Go duration.
func (c *Config) validateTimeout() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("speech.azure: invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}
