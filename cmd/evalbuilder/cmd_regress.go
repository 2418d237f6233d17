package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrowserOperator/web-agent/internal/corpus"
	"github.com/BrowserOperator/web-agent/internal/regression"
	"github.com/BrowserOperator/web-agent/internal/task"
	"github.com/BrowserOperator/web-agent/internal/validator"
)

var regressCmd = &cobra.Command{
	Use:   "regress <task-file>",
	Short: "Run a task's validator against its full example corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tk, err := task.Load(args[0])
		if err != nil {
			return err
		}
		if tk.Validation.JSEval.Script == "" {
			return fmt.Errorf("task %s has no validation script", tk.ID)
		}

		store, err := corpus.Open(cfg.CorpusPath(tk.ID))
		if err != nil {
			return err
		}

		gw, shutdown, err := newGateway(ctx, cfg)
		if err != nil {
			return err
		}
		defer shutdown()

		runner := regression.NewRunner(validator.NewExecutor(gw))
		report, err := runner.Run(ctx, store, tk.Validation.JSEval.Script)
		if err != nil {
			return err
		}

		for _, res := range report.Results {
			status := "PASS"
			if !res.Passed {
				status = "FAIL"
			}
			fmt.Printf("%-4s %-14s expected=%-5v", status, res.ExampleID, res.Expected)
			if res.Reason != "" {
				fmt.Printf("  %s", res.Reason)
			}
			fmt.Println()
		}

		if len(report.Results) == 0 {
			fmt.Println("Corpus is empty; nothing to regress.")
			return nil
		}
		if !report.AllPassed {
			return fmt.Errorf("regression failed")
		}
		fmt.Printf("All %d example(s) passed.\n", len(report.Results))
		return nil
	},
}
