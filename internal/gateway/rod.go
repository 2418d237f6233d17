package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"github.com/BrowserOperator/web-agent/internal/logging"
	"github.com/BrowserOperator/web-agent/internal/snapshot"
)

// RodConfig holds Chrome connection settings for the rod-backed gateway.
type RodConfig struct {
	DebuggerURL         string   `yaml:"debugger_url"`
	Launch              []string `yaml:"launch"`
	Headless            bool     `yaml:"headless"`
	ViewportWidth       int      `yaml:"viewport_width"`
	ViewportHeight      int      `yaml:"viewport_height"`
	NavigationTimeoutMs int      `yaml:"navigation_timeout_ms"`
	EvalTimeoutMs       int      `yaml:"eval_timeout_ms"`
}

// DefaultRodConfig returns sensible defaults.
func DefaultRodConfig() RodConfig {
	return RodConfig{
		Headless:            false,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
		EvalTimeoutMs:       5000,
	}
}

// NavigationTimeout returns the navigation timeout.
func (c RodConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// EvalTimeout returns the expression evaluation timeout.
func (c RodConfig) EvalTimeout() time.Duration {
	if c.EvalTimeoutMs == 0 {
		return 5 * time.Second
	}
	return time.Duration(c.EvalTimeoutMs) * time.Millisecond
}

// RodGateway owns a Chrome connection and the pages bound to tab refs.
// Pages stay open until Shutdown so examples can be re-tested arbitrarily
// many times during regression runs.
type RodGateway struct {
	cfg        RodConfig
	mu         sync.RWMutex
	browser    *rod.Browser
	sessionRef string
	pages      map[string]*rod.Page
}

// NewRodGateway creates an unconnected gateway.
func NewRodGateway(cfg RodConfig) *RodGateway {
	return &RodGateway{
		cfg:   cfg,
		pages: make(map[string]*rod.Page),
	}
}

// Start connects to an existing Chrome or launches a new one.
func (g *RodGateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.browser != nil {
		if _, err := g.browser.Version(); err == nil {
			return nil
		}
		logging.Gateway("stale browser connection, reconnecting")
		_ = g.browser.Close()
		g.browser = nil
		g.pages = make(map[string]*rod.Page)
	}

	controlURL := g.cfg.DebuggerURL
	if controlURL == "" && len(g.cfg.Launch) > 0 {
		bin := g.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(g.cfg.Headless)
		for _, rawFlag := range g.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}
	if controlURL == "" {
		url, err := launcher.New().Headless(g.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	g.browser = browser
	g.sessionRef = uuid.NewString()
	logging.Gateway("browser connected, session %s", g.sessionRef)
	return nil
}

// Shutdown closes all bound pages and the browser.
func (g *RodGateway) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, page := range g.pages {
		_ = page.Close()
		delete(g.pages, id)
	}
	var err error
	if g.browser != nil {
		err = g.browser.Close()
		g.browser = nil
	}
	return err
}

// OpenTab opens a new page at url and binds it to a fresh tab reference.
func (g *RodGateway) OpenTab(ctx context.Context, url string) (TabRef, error) {
	if err := g.Start(ctx); err != nil {
		return TabRef{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.browser == nil {
		return TabRef{}, fmt.Errorf("%w: browser not connected", ErrTransport)
	}

	page, err := g.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return TabRef{}, fmt.Errorf("%w: create page: %v", ErrTransport, err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             g.cfg.ViewportWidth,
		Height:            g.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.GatewayWarn("failed to set viewport: %v", err)
	}

	if err := page.Timeout(g.cfg.NavigationTimeout()).WaitLoad(); err != nil {
		logging.GatewayWarn("page load wait: %v", err)
	}

	ref := TabRef{SessionRef: g.sessionRef, TabID: uuid.NewString()}
	g.pages[ref.TabID] = page
	logging.Gateway("opened tab %s at %s", ref, url)
	return ref, nil
}

func (g *RodGateway) page(tab TabRef) (*rod.Page, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if tab.SessionRef != g.sessionRef {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTab, tab)
	}
	page, ok := g.pages[tab.TabID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTab, tab)
	}
	return page, nil
}

// CaptureSnapshot captures the tab's structural state. Without style or
// geometry options the capture is serialized markup, which the reference
// classifier understands; with options it is a CDP DOMSnapshot document.
func (g *RodGateway) CaptureSnapshot(ctx context.Context, tab TabRef, opts SnapshotOptions) (*snapshot.Snapshot, error) {
	page, err := g.page(tab)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.EvalTimeout())
	defer cancel()

	if len(opts.ComputedStyles) == 0 && !opts.IncludeRects {
		markup, err := page.Context(ctx).HTML()
		if err != nil {
			return nil, fmt.Errorf("%w: capture markup: %v", ErrTransport, err)
		}
		return &snapshot.Snapshot{
			SessionRef: tab.SessionRef,
			TabRef:     tab.TabID,
			CapturedAt: time.Now(),
			Format:     "html",
			Data:       []byte(markup),
		}, nil
	}

	styles := opts.ComputedStyles
	if styles == nil {
		styles = []string{}
	}
	res, err := proto.DOMSnapshotCaptureSnapshot{
		ComputedStyles:  styles,
		IncludeDOMRects: opts.IncludeRects,
	}.Call(page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: capture snapshot: %v", ErrTransport, err)
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return &snapshot.Snapshot{
		SessionRef: tab.SessionRef,
		TabRef:     tab.TabID,
		CapturedAt: time.Now(),
		Format:     "domsnapshot",
		Data:       data,
	}, nil
}

// CaptureMarkup returns the tab's serialized DOM.
func (g *RodGateway) CaptureMarkup(ctx context.Context, tab TabRef) (string, error) {
	page, err := g.page(tab)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.EvalTimeout())
	defer cancel()

	markup, err := page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("%w: capture markup: %v", ErrTransport, err)
	}
	return markup, nil
}

// Evaluate runs expression in the tab's page context via Runtime.evaluate.
// The expression contract forbids return statements; a violation surfaces as
// an exception in the result, exactly like any other script error.
func (g *RodGateway) Evaluate(ctx context.Context, tab TabRef, expression string) (EvalResult, error) {
	page, err := g.page(tab)
	if err != nil {
		return EvalResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.EvalTimeout())
	defer cancel()

	res, err := proto.RuntimeEvaluate{
		Expression:    expression,
		ReturnByValue: true,
	}.Call(page.Context(ctx))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return EvalResult{}, fmt.Errorf("%w: evaluate timed out after %v", ErrTransport, g.cfg.EvalTimeout())
		}
		return EvalResult{}, fmt.Errorf("%w: evaluate: %v", ErrTransport, err)
	}

	if res.ExceptionDetails != nil {
		return EvalResult{Exception: exceptionText(res.ExceptionDetails)}, nil
	}

	var value any
	if res.Result != nil {
		value = res.Result.Value.Val()
	}
	return EvalResult{Value: value}, nil
}

// exceptionText flattens CDP exception details into one diagnostic line.
func exceptionText(details *proto.RuntimeExceptionDetails) string {
	if details == nil {
		return ""
	}
	text := details.Text
	if details.Exception != nil && details.Exception.Description != "" {
		if text != "" {
			text += ": "
		}
		text += details.Exception.Description
	}
	if text == "" {
		text = "script threw an exception"
	}
	return text
}
