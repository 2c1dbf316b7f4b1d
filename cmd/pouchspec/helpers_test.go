package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pouchspec/internal/common"
)

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFileSize(tt.size))
		})
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"seconds", 30 * time.Second, "just now"},
		{"one minute", time.Minute, "1 minute ago"},
		{"minutes", 45 * time.Minute, "45 minutes ago"},
		{"hours", 3 * time.Hour, "3 hours ago"},
		{"yesterday", 30 * time.Hour, "yesterday"},
		{"days", 4 * 24 * time.Hour, "4 days ago"},
		{"old", 30 * 24 * time.Hour, "2026-02-08 12:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatRelativeTime(now.Add(-tt.ago), now))
		})
	}
}

func TestCollectDesignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.JSON", "notes.txt", filepath.Join("nested", "c.json")} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	}
	explicit := filepath.Join(dir, "notes.txt")

	paths, err := collectDesignFiles([]string{dir, explicit, filepath.Join(dir, "b.json")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.JSON"),
		filepath.Join(dir, "b.json"),
		filepath.Join(dir, "nested", "c.json"),
		explicit,
	}, paths)

	_, err = collectDesignFiles([]string{filepath.Join(dir, "missing")})
	require.Error(t, err)
}

func TestDecisionError(t *testing.T) {
	other := errors.New("disk full")
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"illegal transition", common.NewStateError("task-1", "approved", "reject"), "task task-1 is approved and cannot reject"},
		{"missing task", common.NewDataIntegrityError("get task", common.ErrNotFound), "no such review task"},
		{"invalid decision", common.ErrInvalidDecision, "invalid request"},
		{"invalid input", common.ErrInvalidInput, "invalid request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decisionError(tt.err)
			var userErr *common.UserError
			require.ErrorAs(t, err, &userErr)
			assert.Equal(t, tt.message, userErr.UserMessage)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.Same(t, other, decisionError(other))
}

func TestReadQuotation_Empty(t *testing.T) {
	q, err := readQuotation("")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestReadSpecifications_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "specs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pouchType": "box", "colour": "red"}`), 0o600))

	_, err := readSpecifications(path)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}
