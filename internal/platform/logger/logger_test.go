package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesStateFile(t *testing.T) {
	dir := t.TempDir()

	loggers, err := New(dir)
	require.NoError(t, err)

	loggers.State.Info("ledger snapshot")
	loggers.Sync()

	raw, err := os.ReadFile(filepath.Join(dir, "internal_state.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"ledger snapshot"`)
}

func TestNop(t *testing.T) {
	loggers := Nop()
	loggers.App.Info("dropped")
	loggers.Sync()
}
