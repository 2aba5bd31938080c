package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/troupelabs/troupe/internal/provider"
)

// maxResponseSize is the maximum error response body size read back (1 MB).
const maxResponseSize = 1 * 1024 * 1024

// streamChannelBuffer is the buffer size for the streaming channel.
const streamChannelBuffer = 64

// Chat is one conversation channel. The Gemini REST API is stateless, so
// the Chat accumulates the conversation client-side and replays it on
// every call. A user/model exchange is committed to the transcript only
// when its stream ends cleanly; a failed attempt leaves the transcript
// untouched so a retry of the same prompt does not duplicate history.
//
// A Chat is single-threaded: the caller fully drains one stream before
// starting the next.
type Chat struct {
	client   *Client
	model    string
	cfg      *provider.GenerationConfig
	contents []content
}

// Compile-time interface check.
var _ provider.Chat = (*Chat)(nil)

// Model implements provider.Chat.
func (c *Chat) Model() string { return c.model }

// SendStream implements provider.Chat. Initial connection errors are
// returned directly; mid-stream errors are delivered via StreamChunk.Err.
func (c *Chat) SendStream(ctx context.Context, prompt string) (<-chan provider.StreamChunk, error) {
	userTurn := content{Role: "user", Parts: []part{{Text: prompt}}}
	reqBody := buildRequest(append(c.contents[:len(c.contents):len(c.contents)], userTurn), c.cfg)

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.streamURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.streamClient.Do(httpReq)
	if err != nil {
		return nil, mapConnectionError(err)
	}

	// Check for HTTP errors before starting the stream.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		return nil, mapHTTPError(resp.StatusCode, body)
	}

	ch := make(chan provider.StreamChunk, streamChannelBuffer)
	go readStream(ctx, resp.Body, ch, func(response string) {
		c.contents = append(c.contents, userTurn,
			content{Role: "model", Parts: []part{{Text: response}}})
	})

	return ch, nil
}

// History returns the number of committed conversation turns.
func (c *Chat) History() int {
	return len(c.contents)
}

// streamURL builds the streamGenerateContent endpoint for this channel.
func (c *Chat) streamURL() string {
	return fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
		c.client.config.BaseURL, url.PathEscape(c.model), url.QueryEscape(c.client.config.APIKey))
}
