package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadInlineScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todo-add.yaml")

	tk := New("todo-add", "Add todo item", "http://localhost:3000", "Add an item to the list")
	tk.Validation.JSEval.Script = "document.querySelectorAll('li').length > 0"
	require.NoError(t, tk.Save(path, ""))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "todo-add", loaded.ID)
	assert.True(t, loaded.Enabled)
	assert.Equal(t, "networkidle", loaded.Target.WaitFor)
	assert.Equal(t, "js-eval", loaded.Validation.Type)
	assert.Equal(t, "document.querySelectorAll('li').length > 0", loaded.Validation.JSEval.Script)
	assert.True(t, loaded.Validation.JSEval.ExpectedResult)
}

func TestSaveWithScriptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todo-add.yaml")

	tk := New("todo-add", "Add todo item", "http://localhost:3000", "Add an item")
	tk.Validation.JSEval.Script = "!!document.querySelector('#done')"
	require.NoError(t, tk.Save(path, "validation.js"))

	// The YAML references the file instead of inlining the script.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "script_file: validation.js")
	assert.NotContains(t, string(raw), "#done")

	script, err := os.ReadFile(filepath.Join(dir, "validation.js"))
	require.NoError(t, err)
	assert.Equal(t, "!!document.querySelector('#done')\n", string(script))

	// Load resolves the reference back into Script.
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "!!document.querySelector('#done')", loaded.Validation.JSEval.Script)
	assert.Equal(t, "validation.js", loaded.Validation.JSEval.ScriptFile)
}

func TestLoadRejectsIncompleteTask(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: x\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "target.url")
}

func TestValidateRejectsUnknownValidationType(t *testing.T) {
	tk := New("id", "name", "http://x", "obj")
	tk.Validation.Type = "screenshot-diff"
	assert.ErrorContains(t, tk.Validate(), "unsupported validation type")
}
