package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BrowserOperator/web-agent/internal/corpus"
	"github.com/BrowserOperator/web-agent/internal/gateway"
	"github.com/BrowserOperator/web-agent/internal/history"
	"github.com/BrowserOperator/web-agent/internal/oracle"
	"github.com/BrowserOperator/web-agent/internal/regression"
	"github.com/BrowserOperator/web-agent/internal/snapshot"
	"github.com/BrowserOperator/web-agent/internal/synth"
	"github.com/BrowserOperator/web-agent/internal/task"
	"github.com/BrowserOperator/web-agent/internal/validator"
)

var (
	buildID        string
	buildName      string
	buildURL       string
	buildObjective string
	buildOut       string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a new eval task from a live before/after demonstration",
	Long: `build opens the target page, records a baseline snapshot, waits for you to
perform the objective by hand, and records the resulting state. The observed
changes seed the first positive example; a second untouched tab seeds the
first negative one. A validation script is then synthesized and accepted only
once it passes both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if buildID == "" || buildURL == "" || buildObjective == "" {
			return fmt.Errorf("--id, --url and --objective are required")
		}
		if buildName == "" {
			buildName = buildID
		}
		if buildOut == "" {
			buildOut = filepath.Join(cfg.Workspace, buildID+".yaml")
		}
		return runBuild(cmd)
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildID, "id", "", "unique task id (e.g. todo-add-item)")
	buildCmd.Flags().StringVar(&buildName, "name", "", "human-readable task name")
	buildCmd.Flags().StringVar(&buildURL, "url", "", "target page URL")
	buildCmd.Flags().StringVar(&buildObjective, "objective", "", "what the agent under eval must accomplish")
	buildCmd.Flags().StringVar(&buildOut, "out", "", "output task file (default <workspace>/<id>.yaml)")
}

func runBuild(cmd *cobra.Command) error {
	ctx := cmd.Context()

	store, err := corpus.Open(cfg.CorpusPath(buildID))
	if err != nil {
		return err
	}
	if store.HasBaseline() {
		return fmt.Errorf("corpus for %s already has a baseline; use extend to add examples", buildID)
	}

	gw, shutdown, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	fmt.Printf("Opening %s ...\n", buildURL)
	mainTab, err := gw.OpenTab(ctx, buildURL)
	if err != nil {
		return err
	}

	baseline, err := gw.CaptureSnapshot(ctx, mainTab, gateway.SnapshotOptions{})
	if err != nil {
		return err
	}
	if err := store.SaveBaseline(mainTab, baseline); err != nil {
		return err
	}
	fmt.Printf("Baseline recorded (%d bytes).\n", len(baseline.Data))

	if _, err := prompt(cmd.InOrStdin(), fmt.Sprintf("\nNow perform the objective by hand:\n  %s\nPress Enter when done... ", buildObjective)); err != nil {
		return err
	}

	// Capture the completed state and open the untouched reference tab in
	// parallel; both only talk to the gateway.
	var after *snapshot.Snapshot
	var beforeTab gateway.TabRef
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		after, err = gw.CaptureSnapshot(gctx, mainTab, gateway.SnapshotOptions{})
		return err
	})
	g.Go(func() error {
		var err error
		beforeTab, err = gw.OpenTab(gctx, buildURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	classifier := snapshot.NewDOMClassifier(snapshot.DefaultFilter())
	changes := classifier.Classify(baseline, after)
	fmt.Printf("\nObserved %d change(s):\n%s\n", len(changes), snapshot.Summarize(changes, 15))
	logger.Info("classified demonstration", zap.Int("changes", len(changes)))

	posEx, err := store.AddExample(corpus.Positive, mainTab, after, changes)
	if err != nil {
		return err
	}

	beforeSnap, err := gw.CaptureSnapshot(ctx, beforeTab, gateway.SnapshotOptions{})
	if err != nil {
		return err
	}
	negEx, err := store.AddExample(corpus.Negative, beforeTab, beforeSnap, classifier.Classify(baseline, beforeSnap))
	if err != nil {
		return err
	}
	fmt.Printf("Recorded examples %s and %s.\n", posEx.ID, negEx.ID)

	tk := task.New(buildID, buildName, buildURL, buildObjective)
	outcome, err := synthesize(ctx, store, gw, synth.Params{
		Objective:   buildObjective,
		TargetURL:   buildURL,
		MaxAttempts: cfg.Oracle.MaxAttempts,
	}, tk)
	if err != nil {
		return err
	}
	return reportOutcome(outcome)
}

// synthesize wires the oracle, executor, runner and attempt log for one cycle
// and persists accepted validators into the task file.
func synthesize(ctx context.Context, store *corpus.Store, gw gateway.Gateway, params synth.Params, tk *task.Task) (synth.Outcome, error) {
	orc, err := newOracle(ctx, cfg, tk.ID)
	if err != nil {
		return synth.Outcome{}, err
	}

	var recorder synth.Recorder
	if log, err := history.Open(cfg.Workspace, tk.ID); err != nil {
		logger.Warn("attempt log unavailable", zap.Error(err))
	} else {
		defer log.Close()
		recorder = log
	}

	exec := validator.NewExecutor(gw)
	orchestrator := synth.NewOrchestrator(orc, exec, regression.NewRunner(exec), recorder)

	return orchestrator.Synthesize(ctx, store, params, func(source string) error {
		tk.Validation.JSEval.Script = source
		return tk.Save(buildOutPath(tk), oracle.ArtifactFileName)
	})
}

// buildOutPath resolves where the task file lives. The build command sets
// buildOut; other commands pass the path they loaded the task from.
func buildOutPath(tk *task.Task) string {
	if taskFilePath != "" {
		return taskFilePath
	}
	return buildOut
}

func reportOutcome(out synth.Outcome) error {
	switch out.Kind {
	case synth.Accepted:
		fmt.Printf("\nValidator accepted after %d attempt(s):\n\n%s\n", out.Attempts, out.Validator)
		return nil
	case synth.AbortedExhausted:
		fmt.Printf("\nNo validator passed the corpus after %d attempt(s).\nLast rejection: %s\nLast candidate:\n\n%s\n", out.Attempts, out.Reason, out.Validator)
		return fmt.Errorf("synthesis exhausted")
	case synth.AbortedTransport:
		return fmt.Errorf("synthesis aborted: %s", out.Reason)
	default:
		return fmt.Errorf("unexpected outcome %s", out.Kind)
	}
}
