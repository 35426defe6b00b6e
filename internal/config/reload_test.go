package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatchLogLevel_appliesChangeOnWrite(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RUST_LOG=info\n"), 0o644))

	atom := zap.NewAtomicLevelAt(zap.InfoLevel)
	logger := zap.NewNop()

	stop, err := WatchLogLevel(envFile, atom, logger)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(envFile, []byte("RUST_LOG=debug\n"), 0o644))

	require.Eventually(t, func() bool {
		return atom.Level() == zap.DebugLevel
	}, time.Second, 10*time.Millisecond)
}

func TestWatchLogLevel_ignoresInvalidLevel(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RUST_LOG=info\n"), 0o644))

	atom := zap.NewAtomicLevelAt(zap.InfoLevel)
	logger := zap.NewNop()

	stop, err := WatchLogLevel(envFile, atom, logger)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(envFile, []byte("RUST_LOG=not-a-level\n"), 0o644))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, zap.InfoLevel, atom.Level())
}

func TestWatchLogLevel_missingFile(t *testing.T) {
	atom := zap.NewAtomicLevelAt(zap.InfoLevel)
	_, err := WatchLogLevel(filepath.Join(t.TempDir(), "nope.env"), atom, zap.NewNop())
	assert.Error(t, err)
}
