// Package gemini implements the provider.gemini module, streaming
// conversations through the Gemini generateContent REST API.
package gemini

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/troupelabs/troupe/internal/core"
	"github.com/troupelabs/troupe/internal/provider"
)

func init() {
	core.RegisterModule(&Client{})
}

// Compile-time interface guards.
var (
	_ provider.Client   = (*Client)(nil)
	_ core.Module       = (*Client)(nil)
	_ core.Configurable = (*Client)(nil)
	_ core.Provisioner  = (*Client)(nil)
	_ core.Validator    = (*Client)(nil)
)

// Client implements provider.Client against the Gemini API. One Client is
// shared by every session; each NewChat opens an independent stateful
// conversation channel.
type Client struct {
	config Config
	logger *slog.Logger

	// streamClient carries the SSE streams. http.Client.Timeout is a hard
	// deadline for the entire response body, which would kill long
	// generations, so this client has no timeout; cancellation is handled
	// via context.
	streamClient *http.Client

	models []string
}

// Compile-time interface check.
var _ provider.Client = (*Client)(nil)

// ModuleInfo implements core.Module.
func (c *Client) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.gemini",
		New: func() core.Module { return &Client{} },
	}
}

// Configure implements core.Configurable.
func (c *Client) Configure(node *yaml.Node) error {
	if err := node.Decode(&c.config); err != nil {
		return err
	}
	c.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (c *Client) Provision(ctx *core.AppContext) error {
	c.logger = ctx.Logger
	c.streamClient = &http.Client{}
	c.models = c.config.Models

	ctx.RegisterService("provider.client", c)
	return nil
}

// Validate implements core.Validator.
func (c *Client) Validate() error {
	if c.config.APIKey == "" {
		return errors.New("provider.gemini: api_key is required")
	}
	if len(c.models) == 0 {
		return errors.New("provider.gemini: models allow-list is required")
	}
	return nil
}

// SetModels replaces the model allow-list. The runner calls this when the
// application config carries its own list.
func (c *Client) SetModels(models []string) {
	c.models = slices.Clone(models)
}

// Supports implements provider.Client.
func (c *Client) Supports(model string) bool {
	return slices.Contains(c.models, model)
}

// NewChat implements provider.Client. The returned Chat is stateful: it
// accumulates the conversation client-side and replays it on every call,
// with cfg bound for the channel's lifetime.
func (c *Client) NewChat(model string, cfg *provider.GenerationConfig) (provider.Chat, error) {
	if !c.Supports(model) {
		return nil, fmt.Errorf("%w: %q", provider.ErrInvalidModel, model)
	}
	return &Chat{client: c, model: model, cfg: cfg}, nil
}

// Close implements provider.Client.
func (c *Client) Close() error {
	c.streamClient.CloseIdleConnections()
	return nil
}
