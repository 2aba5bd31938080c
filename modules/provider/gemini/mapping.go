package gemini

import "github.com/troupelabs/troupe/internal/provider"

// Wire types for the generateContent request and its SSE response chunks.
// Field names follow the Gemini REST API's camelCase convention.

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	SafetySettings    []safetySetting   `json:"safetySettings,omitempty"`
	Tools             []tool            `json:"tools,omitempty"`
	ToolConfig        *toolConfig       `json:"toolConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	TopK             *int     `json:"topK,omitempty"`
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type tool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name string `json:"name"`
}

type toolConfig struct {
	FunctionCallingConfig functionCallingConfig `json:"functionCallingConfig"`
}

type functionCallingConfig struct {
	Mode                 string   `json:"mode"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount"`
}

// buildRequest assembles the wire request from the conversation so far and
// the channel's bound configuration.
func buildRequest(contents []content, cfg *provider.GenerationConfig) generateRequest {
	req := generateRequest{Contents: contents}
	if cfg == nil {
		return req
	}

	if cfg.SystemInstruction != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemInstruction}}}
	}

	gc := &generationConfig{
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		TopK:            cfg.TopK,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
	if cfg.ResponseMIMEType != "" && cfg.ResponseMIMEType != provider.DefaultResponseMIMEType {
		gc.ResponseMIMEType = cfg.ResponseMIMEType
	}
	if gc.Temperature != nil || gc.TopP != nil || gc.TopK != nil ||
		gc.MaxOutputTokens != nil || gc.ResponseMIMEType != "" {
		req.GenerationConfig = gc
	}

	for _, s := range cfg.SafetySettings {
		req.SafetySettings = append(req.SafetySettings, safetySetting{
			Category:  string(s.Category),
			Threshold: string(s.Threshold),
		})
	}

	if len(cfg.Tools) > 0 {
		decls := make([]functionDeclaration, len(cfg.Tools))
		for i, name := range cfg.Tools {
			decls[i] = functionDeclaration{Name: name}
		}
		req.Tools = []tool{{FunctionDeclarations: decls}}
	}

	if cfg.ToolSelectionMode != "" {
		req.ToolConfig = &toolConfig{
			FunctionCallingConfig: functionCallingConfig{
				Mode:                 string(cfg.ToolSelectionMode),
				AllowedFunctionNames: cfg.AllowedTools,
			},
		}
	}

	return req
}
