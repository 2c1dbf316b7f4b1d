package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "review.db")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0o600))

	design := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(design, []byte(`{"id": "file-empty", "layers": []}`), 0o600))

	global := []string{"--config", cfgPath, "--db", dbPath}
	run := func(args ...string) string {
		return execute(t, append(args, global...)...)
	}

	out := run("migrate")
	assert.Contains(t, out, "Database migrated to version 3")

	out = run("migrate", "--status")
	assert.Contains(t, out, "Current version: 3")

	var extracted struct {
		Task *struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Reason string `json:"reason"`
		} `json:"task"`
	}
	out = run("extract", design, "--json")
	require.NoError(t, json.Unmarshal([]byte(out), &extracted))
	require.NotNil(t, extracted.Task)
	assert.Equal(t, "pending", extracted.Task.Status)
	assert.Equal(t, "insufficient_data", extracted.Task.Reason)

	out = run("review", "show", extracted.Task.ID)
	assert.Contains(t, out, "file-empty")
	assert.Contains(t, out, "task_created")

	out = run("review", "reject", extracted.Task.ID, "--reviewer", "ana", "--reason", "no artwork")
	assert.Contains(t, out, extracted.Task.ID)

	out = run("stats")
	assert.Contains(t, out, "rejected 1")

	out = run("db", "backup", "--name", "after-review")
	assert.Contains(t, out, "after-review")

	out = run("db", "backups")
	assert.Contains(t, out, "after-review")
	assert.Contains(t, out, "Snapshots in "+filepath.Join(dir, "snapshots"))

	workbook := filepath.Join(dir, "review.xlsx")
	run("export", "--out", workbook)
	info, err := os.Stat(workbook)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
