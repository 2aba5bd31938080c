// Package azure implements the speech.azure module, synthesizing narration
// through the Azure Cognitive Services text-to-speech REST API.
package azure

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/troupelabs/troupe/internal/core"
	"github.com/troupelabs/troupe/internal/speech"
)

func init() {
	core.RegisterModule(&Synthesizer{})
}

// Compile-time interface guards.
var (
	_ speech.Synthesizer = (*Synthesizer)(nil)
	_ core.Module        = (*Synthesizer)(nil)
	_ core.Configurable  = (*Synthesizer)(nil)
	_ core.Provisioner   = (*Synthesizer)(nil)
	_ core.Validator     = (*Synthesizer)(nil)
)

// Synthesizer implements speech.Synthesizer against the Azure TTS endpoint.
// Synthesized audio is written to the output directory; playback is left to
// the operator.
type Synthesizer struct {
	config Config
	logger *slog.Logger
	client *http.Client

	outputDir string

	// sleep and now are swapped out in tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// ModuleInfo implements core.Module.
func (s *Synthesizer) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "speech.azure",
		New: func() core.Module { return &Synthesizer{} },
	}
}

// Configure implements core.Configurable.
func (s *Synthesizer) Configure(node *yaml.Node) error {
	if err := node.Decode(&s.config); err != nil {
		return err
	}
	s.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (s *Synthesizer) Provision(ctx *core.AppContext) error {
	s.logger = ctx.Logger
	s.client = &http.Client{Timeout: s.config.parsedTimeout()}
	s.sleep = time.Sleep
	s.now = time.Now

	s.outputDir = s.config.OutputDir
	if s.outputDir == "" {
		s.outputDir = filepath.Join(ctx.DataDir, "narration")
	}

	ctx.RegisterService("speech.synthesizer", s)
	return nil
}

// Validate implements core.Validator.
func (s *Synthesizer) Validate() error {
	if s.config.SubscriptionKey == "" {
		return errors.New("speech.azure: subscription_key is required")
	}
	if s.config.Region == "" && s.config.Endpoint == "" {
		return errors.New("speech.azure: region or endpoint is required")
	}
	return s.config.validateTimeout()
}
