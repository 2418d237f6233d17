package oracle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/BrowserOperator/web-agent/internal/logging"
)

// ArtifactOracle hands requests to an external agent through the filesystem:
// it writes the request document into a working directory and waits for the
// agent to save the script artifact there. The artifact is never deleted
// between attempts, so the agent can read its previous try and improve it.
type ArtifactOracle struct {
	dir         string
	debounce    time.Duration
	pollEvery   time.Duration
	waitTimeout time.Duration

	lastContent string
}

// NewArtifactOracle creates an oracle rooted at dir. A zero waitTimeout
// means wait until the context is done.
func NewArtifactOracle(dir string, waitTimeout time.Duration) *ArtifactOracle {
	return &ArtifactOracle{
		dir:         dir,
		debounce:    500 * time.Millisecond,
		pollEvery:   2 * time.Second,
		waitTimeout: waitTimeout,
	}
}

// RequestPath returns where the request document is written.
func (o *ArtifactOracle) RequestPath() string {
	return filepath.Join(o.dir, RequestFileName)
}

// ArtifactPath returns where the agent must save the script.
func (o *ArtifactOracle) ArtifactPath() string {
	return filepath.Join(o.dir, ArtifactFileName)
}

// ProposeOrRepair writes the request document and blocks until the artifact
// file appears or changes. The previous artifact content is remembered so a
// stale file from an earlier attempt is not mistaken for a new proposal.
func (o *ArtifactOracle) ProposeOrRepair(ctx context.Context, req Request) (string, error) {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return "", fmt.Errorf("create oracle directory: %w", err)
	}
	if err := os.WriteFile(o.RequestPath(), []byte(RenderRequest(req)), 0o644); err != nil {
		return "", fmt.Errorf("write request document: %w", err)
	}
	logging.Oracle("wrote request document to %s, waiting for %s", o.RequestPath(), ArtifactFileName)

	if o.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.waitTimeout)
		defer cancel()
	}

	script, err := o.waitForArtifact(ctx)
	if err != nil {
		return "", err
	}
	o.lastContent = script
	return script, nil
}

func (o *ArtifactOracle) waitForArtifact(ctx context.Context) (string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(o.dir); err != nil {
		logging.OracleWarn("watch %s failed, polling only: %v", o.dir, err)
	}

	// Poll ticker as a fallback; editors that rename into place can produce
	// event sequences fsnotify reports inconsistently across platforms.
	ticker := time.NewTicker(o.pollEvery)
	defer ticker.Stop()

	var pending <-chan time.Time
	for {
		if pending == nil {
			if script, ok := o.readFresh(); ok {
				return script, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for %s: %w", ArtifactFileName, ctx.Err())

		case event, ok := <-watcher.Events:
			if !ok {
				pending = nil
				continue
			}
			if filepath.Base(event.Name) != ArtifactFileName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce rapid saves before reading.
			pending = time.After(o.debounce)

		case err, ok := <-watcher.Errors:
			if ok && err != nil {
				logging.OracleWarn("watcher error: %v", err)
			}

		case <-pending:
			pending = nil
			if script, ok := o.readFresh(); ok {
				return script, nil
			}

		case <-ticker.C:
		}
	}
}

// readFresh reads the artifact and reports whether it holds new, non-empty
// content compared to the previous accepted proposal.
func (o *ArtifactOracle) readFresh() (string, bool) {
	data, err := os.ReadFile(o.ArtifactPath())
	if err != nil {
		return "", false
	}
	script := strings.TrimSpace(string(data))
	if script == "" || script == o.lastContent {
		return "", false
	}
	logging.Oracle("picked up artifact (%d bytes)", len(script))
	return script, true
}
