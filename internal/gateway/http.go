package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BrowserOperator/web-agent/internal/logging"
	"github.com/BrowserOperator/web-agent/internal/snapshot"
)

// HTTPConfig holds connection settings for a running BrowserOperator server.
type HTTPConfig struct {
	BaseURL   string `yaml:"base_url"`
	ClientID  string `yaml:"client_id"` // optional; first registered client when empty
	TimeoutMs int    `yaml:"timeout_ms"`
}

// DefaultHTTPConfig returns sensible defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BaseURL:   "http://localhost:8080",
		TimeoutMs: 10000,
	}
}

func (c HTTPConfig) timeout() time.Duration {
	if c.TimeoutMs == 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// HTTPGateway implements Gateway against the BrowserOperator HTTP API:
// GET /clients, POST /tabs/open, POST /page/content, POST /page/execute.
type HTTPGateway struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPGateway creates a gateway for the server at cfg.BaseURL.
func NewHTTPGateway(cfg HTTPConfig) *HTTPGateway {
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.timeout()},
	}
}

// clientID resolves the browser client to target, querying /clients when not
// pinned by configuration.
func (g *HTTPGateway) clientID(ctx context.Context) (string, error) {
	if g.cfg.ClientID != "" {
		return g.cfg.ClientID, nil
	}

	var clients []struct {
		ID string `json:"id"`
	}
	if err := g.get(ctx, "/clients", &clients); err != nil {
		return "", err
	}
	if len(clients) == 0 {
		return "", fmt.Errorf("%w: no browser clients registered", ErrTransport)
	}
	g.cfg.ClientID = clients[0].ID
	logging.Gateway("using browser client %s", g.cfg.ClientID)
	return g.cfg.ClientID, nil
}

// OpenTab opens a new tab at url on the resolved client.
func (g *HTTPGateway) OpenTab(ctx context.Context, url string) (TabRef, error) {
	clientID, err := g.clientID(ctx)
	if err != nil {
		return TabRef{}, err
	}

	var resp struct {
		TabID string `json:"tabId"`
	}
	req := map[string]any{
		"clientId":   clientID,
		"url":        url,
		"background": false,
	}
	if err := g.post(ctx, "/tabs/open", req, &resp); err != nil {
		return TabRef{}, err
	}
	if resp.TabID == "" {
		return TabRef{}, fmt.Errorf("%w: tabs/open returned no tabId", ErrTransport)
	}
	return TabRef{SessionRef: clientID, TabID: resp.TabID}, nil
}

// CaptureSnapshot captures page state as serialized markup via
// /page/content; the server exposes no richer structural endpoint, so the
// style and geometry options are ignored.
func (g *HTTPGateway) CaptureSnapshot(ctx context.Context, tab TabRef, opts SnapshotOptions) (*snapshot.Snapshot, error) {
	if len(opts.ComputedStyles) > 0 || opts.IncludeRects {
		logging.GatewayWarn("snapshot options unsupported over HTTP, capturing markup only")
	}
	markup, err := g.CaptureMarkup(ctx, tab)
	if err != nil {
		return nil, err
	}
	return &snapshot.Snapshot{
		SessionRef: tab.SessionRef,
		TabRef:     tab.TabID,
		CapturedAt: time.Now(),
		Format:     "html",
		Data:       []byte(markup),
	}, nil
}

// CaptureMarkup fetches serialized markup via /page/content, iframes included.
func (g *HTTPGateway) CaptureMarkup(ctx context.Context, tab TabRef) (string, error) {
	req := map[string]any{
		"clientId":       tab.SessionRef,
		"tabId":          tab.TabID,
		"format":         "html",
		"includeIframes": true,
	}
	var resp struct {
		Content    string `json:"content"`
		FrameCount int    `json:"frameCount"`
	}
	if err := g.post(ctx, "/page/content", req, &resp); err != nil {
		return "", err
	}
	logging.Gateway("captured %d bytes of markup (%d frames) from %s", len(resp.Content), resp.FrameCount, tab)
	return resp.Content, nil
}

// Evaluate runs expression in the tab via /page/execute. The server response
// is either {result:{value}} (some builds return a bare result) or
// {exceptionDetails}.
func (g *HTTPGateway) Evaluate(ctx context.Context, tab TabRef, expression string) (EvalResult, error) {
	req := map[string]any{
		"clientId":      tab.SessionRef,
		"tabId":         tab.TabID,
		"expression":    expression,
		"returnByValue": true,
	}
	var resp struct {
		Result           json.RawMessage `json:"result"`
		ExceptionDetails json.RawMessage `json:"exceptionDetails"`
	}
	if err := g.post(ctx, "/page/execute", req, &resp); err != nil {
		return EvalResult{}, err
	}

	if len(resp.ExceptionDetails) > 0 && string(resp.ExceptionDetails) != "null" {
		return EvalResult{Exception: flattenException(resp.ExceptionDetails)}, nil
	}

	// Scripts evaluating to undefined come back with no result at all.
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return EvalResult{}, nil
	}

	// Prefer the wrapped form. Only an object made solely of RemoteObject
	// fields counts as the envelope; a bare object result that merely
	// contains a "value" key stays intact.
	var obj map[string]any
	if json.Unmarshal(resp.Result, &obj) == nil {
		if v, hasValue := obj["value"]; hasValue && envelopeShaped(obj) {
			return EvalResult{Value: v}, nil
		}
		return EvalResult{Value: obj}, nil
	}
	var bare any
	if err := json.Unmarshal(resp.Result, &bare); err != nil {
		return EvalResult{}, fmt.Errorf("%w: undecodable execute result: %v", ErrTransport, err)
	}
	return EvalResult{Value: bare}, nil
}

// envelopeShaped reports whether every key of obj belongs to the
// Runtime.RemoteObject envelope the server wraps results in.
func envelopeShaped(obj map[string]any) bool {
	for k := range obj {
		switch k {
		case "type", "subtype", "className", "value", "unserializableValue", "description", "objectId":
		default:
			return false
		}
	}
	return true
}

// flattenException renders exceptionDetails as a single line.
func flattenException(raw json.RawMessage) string {
	var details struct {
		Text      string `json:"text"`
		Exception struct {
			Description string `json:"description"`
		} `json:"exception"`
	}
	if err := json.Unmarshal(raw, &details); err != nil {
		return strings.TrimSpace(string(raw))
	}
	text := details.Text
	if details.Exception.Description != "" {
		if text != "" {
			text += ": "
		}
		text += details.Exception.Description
	}
	if text == "" {
		return strings.TrimSpace(string(raw))
	}
	return text
}

func (g *HTTPGateway) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return g.do(req, out)
}

func (g *HTTPGateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g *HTTPGateway) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", ErrTransport, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %d: %s", ErrTransport, req.URL.Path, resp.StatusCode, truncate(string(data), 200))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrTransport, req.URL.Path, err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
