package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/BrowserOperator/web-agent/internal/logging"
)

// GeminiOracle generates validator scripts through the Gemini API.
type GeminiOracle struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiOracle creates a Gemini-backed oracle. Defaults: model
// "gemini-2.0-flash", timeout 120s.
func NewGeminiOracle(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiOracle, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiOracle{client: client, model: model, timeout: timeout}, nil
}

// ProposeOrRepair renders the request document, sends it as one user turn
// and extracts the fenced script from the model text.
func (o *GeminiOracle) ProposeOrRepair(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := RenderRequest(req)
	logging.Oracle("gemini request: model=%s attempt=%d repairing=%v", o.model, req.Attempt, req.Repairing())

	result, err := o.client.Models.GenerateContent(ctx, o.model, genai.Text(prompt), nil)
	if err != nil {
		if isRateLimitMessage(err.Error()) {
			return "", &RateLimitError{Provider: "gemini", RawResponse: err.Error()}
		}
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", errors.New("gemini returned no text")
	}

	script := ExtractScript(text)
	if script == "" {
		return "", errors.New("gemini response contained no script")
	}
	return script, nil
}
