// Package task reads and writes browser-agent eval task files. A task binds
// an objective to a target page and carries the validation script that
// decides whether an agent run achieved the objective.
package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Target describes the page the agent operates on.
type Target struct {
	URL         string `yaml:"url"`
	WaitFor     string `yaml:"wait_for,omitempty"`
	WaitTimeout int    `yaml:"wait_timeout,omitempty"`
}

// Input is the instruction handed to the agent under evaluation.
type Input struct {
	Objective string `yaml:"objective"`
}

// JSEval configures script-based validation. Script holds the inline source;
// ScriptFile points at a sibling file and wins when both are set.
type JSEval struct {
	Script         string `yaml:"script,omitempty"`
	ScriptFile     string `yaml:"script_file,omitempty"`
	ExpectedResult bool   `yaml:"expected_result"`
	Timeout        int    `yaml:"timeout,omitempty"`
}

// Validation selects and configures the validation method.
type Validation struct {
	Type   string `yaml:"type"`
	JSEval JSEval `yaml:"js-eval,omitempty"`
}

// Task is one eval definition.
type Task struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Enabled     bool       `yaml:"enabled"`
	Target      Target     `yaml:"target"`
	Tool        string     `yaml:"tool"`
	Timeout     int        `yaml:"timeout,omitempty"`
	Input       Input      `yaml:"input"`
	Validation  Validation `yaml:"validation"`
}

// New returns a task skeleton with the standard defaults filled in.
func New(id, name, url, objective string) *Task {
	return &Task{
		ID:      id,
		Name:    name,
		Enabled: true,
		Target:  Target{URL: url, WaitFor: "networkidle", WaitTimeout: 5000},
		Tool:    "action_agent",
		Timeout: 60000,
		Input:   Input{Objective: objective},
		Validation: Validation{
			Type:   "js-eval",
			JSEval: JSEval{ExpectedResult: true, Timeout: 5000},
		},
	}
}

// Load reads a task file and resolves a script_file reference relative to it.
func Load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	var t Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("task %s: %w", path, err)
	}

	if ref := t.Validation.JSEval.ScriptFile; ref != "" {
		script, err := os.ReadFile(filepath.Join(filepath.Dir(path), ref))
		if err != nil {
			return nil, fmt.Errorf("read validation script %s: %w", ref, err)
		}
		t.Validation.JSEval.Script = strings.TrimSpace(string(script))
	}
	return &t, nil
}

// Save writes the task to path. When scriptFile is non-empty the validation
// script is written to that sibling file and referenced instead of inlined.
func (t *Task) Save(path, scriptFile string) error {
	out := *t
	if scriptFile != "" && out.Validation.JSEval.Script != "" {
		scriptPath := filepath.Join(filepath.Dir(path), scriptFile)
		if err := os.WriteFile(scriptPath, []byte(out.Validation.JSEval.Script+"\n"), 0o644); err != nil {
			return fmt.Errorf("write validation script: %w", err)
		}
		out.Validation.JSEval.ScriptFile = scriptFile
		out.Validation.JSEval.Script = ""
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create task directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}
	return nil
}

// Validate checks the fields every runnable task needs.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("missing id")
	}
	if t.Target.URL == "" {
		return fmt.Errorf("missing target.url")
	}
	if t.Input.Objective == "" {
		return fmt.Errorf("missing input.objective")
	}
	if t.Validation.Type != "" && t.Validation.Type != "js-eval" {
		return fmt.Errorf("unsupported validation type %q", t.Validation.Type)
	}
	return nil
}
