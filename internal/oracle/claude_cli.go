package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/BrowserOperator/web-agent/internal/logging"
)

// CLIOracle drives the Claude Code CLI as the code-generation backend. It
// executes `claude -p --output-format json --model <model>` and parses the
// JSON response.
type CLIOracle struct {
	model   string
	timeout time.Duration
}

// cliResponse is the JSON output of `claude --output-format json`.
type cliResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	IsRateLimited bool `json:"is_rate_limited,omitempty"`
}

// NewCLIOracle creates a CLI-backed oracle. Defaults: model "sonnet",
// timeout 300s.
func NewCLIOracle(model string, timeout time.Duration) *CLIOracle {
	if model == "" {
		model = "sonnet"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &CLIOracle{model: model, timeout: timeout}
}

// ProposeOrRepair renders the request document, sends it through the CLI and
// extracts the fenced script from the response.
func (o *CLIOracle) ProposeOrRepair(ctx context.Context, req Request) (string, error) {
	prompt := RenderRequest(req)
	logging.Oracle("claude-cli request: attempt=%d repairing=%v prompt=%d bytes", req.Attempt, req.Repairing(), len(prompt))

	response, err := o.run(ctx, prompt)
	if err != nil {
		return "", err
	}

	script := ExtractScript(response)
	if script == "" {
		return "", errors.New("claude CLI response contained no script")
	}
	return script, nil
}

func (o *CLIOracle) run(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	args := []string{
		"-p", prompt,
		"--output-format", "json",
		"--model", o.model,
	}
	cmd := exec.CommandContext(ctx, "claude", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("claude CLI timed out after %v: %w", o.timeout, ctx.Err())
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", fmt.Errorf("claude CLI execution canceled: %w", ctx.Err())
		}
		stderrStr := stderr.String()
		if isRateLimitMessage(stderrStr) {
			return "", &RateLimitError{Provider: "claude-cli", RawResponse: stderrStr}
		}
		return "", fmt.Errorf("claude CLI execution failed: %w (stderr: %s)", err, stderrStr)
	}

	return parseCLIResponse(stdout.Bytes())
}

// parseCLIResponse extracts the assistant message text from the JSON output.
func parseCLIResponse(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty response from claude CLI")
	}

	var resp cliResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("unmarshal claude CLI response: %w", err)
	}

	if resp.IsRateLimited {
		return "", &RateLimitError{Provider: "claude-cli", RawResponse: string(data)}
	}
	if resp.Error != nil {
		msg := strings.ToLower(resp.Error.Message)
		if strings.Contains(msg, "rate limit") || strings.Contains(strings.ToLower(resp.Error.Type), "rate_limit") {
			return "", &RateLimitError{Provider: "claude-cli", RawResponse: resp.Error.Message}
		}
		return "", fmt.Errorf("claude CLI error: %s (type: %s)", resp.Error.Message, resp.Error.Type)
	}

	var text strings.Builder
	for _, content := range resp.Result.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", errors.New("no text content in claude CLI response")
	}
	return out, nil
}

func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate_limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "429")
}
