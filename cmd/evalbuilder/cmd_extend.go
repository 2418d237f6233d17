package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrowserOperator/web-agent/internal/corpus"
	"github.com/BrowserOperator/web-agent/internal/gateway"
	"github.com/BrowserOperator/web-agent/internal/snapshot"
	"github.com/BrowserOperator/web-agent/internal/synth"
	"github.com/BrowserOperator/web-agent/internal/task"
)

var (
	taskFilePath string
	extendType   string
)

var extendCmd = &cobra.Command{
	Use:   "extend <task-file>",
	Short: "Add a labeled example to a task's corpus and re-gate its validator",
	Long: `extend opens a fresh tab on the task's target page and waits while you
arrange the state to demonstrate: for a positive example, a state where the
objective is achieved; for a negative one, a plausible state where it is not.
The current validator is then tested against the new example and repaired if
it gives the wrong answer. Whatever happens, the example stays recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskFilePath = args[0]
		return runExtend(cmd)
	},
}

func init() {
	extendCmd.Flags().StringVar(&extendType, "type", string(corpus.Positive), "example label: positive or negative")
}

func runExtend(cmd *cobra.Command) error {
	ctx := cmd.Context()

	typ := corpus.ExampleType(extendType)
	if !typ.Valid() {
		return fmt.Errorf("invalid --type %q (want positive or negative)", extendType)
	}

	tk, err := task.Load(taskFilePath)
	if err != nil {
		return err
	}

	store, err := corpus.Open(cfg.CorpusPath(tk.ID))
	if err != nil {
		return err
	}
	_, baseline, err := store.BaselineSnapshot()
	if err != nil {
		return fmt.Errorf("corpus for %s has no baseline; run build first", tk.ID)
	}

	gw, shutdown, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	fmt.Printf("Opening %s ...\n", tk.Target.URL)
	tab, err := gw.OpenTab(ctx, tk.Target.URL)
	if err != nil {
		return err
	}

	var instruction string
	if typ == corpus.Positive {
		instruction = fmt.Sprintf("Arrange a state where the objective IS achieved:\n  %s", tk.Input.Objective)
	} else {
		instruction = fmt.Sprintf("Arrange a plausible state where the objective is NOT achieved:\n  %s", tk.Input.Objective)
	}
	if _, err := prompt(cmd.InOrStdin(), instruction+"\nPress Enter when done... "); err != nil {
		return err
	}

	snap, err := gw.CaptureSnapshot(ctx, tab, gateway.SnapshotOptions{})
	if err != nil {
		return err
	}

	classifier := snapshot.NewDOMClassifier(snapshot.DefaultFilter())
	changes := classifier.Classify(baseline, snap)
	fmt.Printf("\nObserved %d change(s) against the baseline:\n%s\n", len(changes), snapshot.Summarize(changes, 15))

	ex, err := store.AddExample(typ, tab, snap, changes)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded example %s.\n", ex.ID)

	outcome, err := synthesize(ctx, store, gw, synth.Params{
		Objective:     tk.Input.Objective,
		TargetURL:     tk.Target.URL,
		CurrentSource: tk.Validation.JSEval.Script,
		NewExample:    ex,
		MaxAttempts:   cfg.Oracle.MaxAttempts,
	}, tk)
	if err != nil {
		return err
	}
	if !outcome.Ok() {
		fmt.Printf("Example %s is kept; rerun extend or fix the page and retry.\n", ex.ID)
	}
	return reportOutcome(outcome)
}
