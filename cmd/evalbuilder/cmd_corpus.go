package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrowserOperator/web-agent/internal/corpus"
	"github.com/BrowserOperator/web-agent/internal/snapshot"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Inspect a task's example corpus",
}

var corpusShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "List the recorded examples for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := corpus.Open(cfg.CorpusPath(args[0]))
		if err != nil {
			return err
		}

		if tab, snap, err := store.BaselineSnapshot(); err == nil {
			fmt.Printf("baseline: tab=%s format=%s %d bytes captured %s\n",
				tab, snap.Format, len(snap.Data), snap.CapturedAt.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("baseline: none")
		}

		examples := store.Examples()
		if len(examples) == 0 {
			fmt.Println("no examples recorded")
			return nil
		}
		fmt.Printf("%d example(s), %d positive / %d negative:\n",
			len(examples), store.Count(corpus.Positive), store.Count(corpus.Negative))
		for _, ex := range examples {
			fmt.Printf("  %-14s expected=%-5v tab=%s changes=%d\n", ex.ID, ex.ExpectedResult, ex.Tab, len(ex.Changes))
		}
		return nil
	},
}

var corpusChangesCmd = &cobra.Command{
	Use:   "changes <task-id> <example-id>",
	Short: "Show the recorded changes of one example",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := corpus.Open(cfg.CorpusPath(args[0]))
		if err != nil {
			return err
		}
		for _, ex := range store.Examples() {
			if ex.ID != args[1] {
				continue
			}
			if len(ex.Changes) == 0 {
				fmt.Println("no changes relative to the baseline")
				return nil
			}
			fmt.Println(snapshot.Summarize(ex.Changes, 0))
			return nil
		}
		return fmt.Errorf("no example %s in corpus %s", args[1], args[0])
	},
}

func init() {
	corpusCmd.AddCommand(corpusShowCmd, corpusChangesCmd)
}
