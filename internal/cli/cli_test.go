package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/opd-ai/pixlfs/emulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runSimulated executes the CLI against an emulated device.
func runSimulated(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--simulate"}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDrivesCommand(t *testing.T) {
	out, _, err := runSimulated(t, "drives")
	require.NoError(t, err)
	assert.Contains(t, out, "E:/")
	assert.Contains(t, out, "Flash")
}

func TestLsCommand(t *testing.T) {
	out, _, err := runSimulated(t, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "d          0 amiibo")

	out, _, err = runSimulated(t, "ls", "e")
	require.NoError(t, err)
	assert.Contains(t, out, "amiibo")
}

func TestLsMissingDirectory(t *testing.T) {
	_, _, err := runSimulated(t, "ls", "E:/nope")
	assert.Error(t, err)
}

func TestMkdirCommand(t *testing.T) {
	out, _, err := runSimulated(t, "mkdir", "E:/new", "E:/amiibo")
	require.NoError(t, err)
	assert.Contains(t, out, "2 succeeded, 0 failed, 0 skipped")
}

func TestRmMissingFails(t *testing.T) {
	out, _, err := runSimulated(t, "rm", "E:/missing.bin")
	require.Error(t, err)
	assert.Contains(t, out, "0 succeeded, 1 failed")
}

func TestPutCommand(t *testing.T) {
	local := filepath.Join(t.TempDir(), "dump.bin")
	require.NoError(t, os.WriteFile(local, bytes.Repeat([]byte{0xAB}, 540), 0o644))

	out, stderr, err := runSimulated(t, "put", local, "E:/amiibo")
	require.NoError(t, err)
	assert.Contains(t, out, "1 succeeded")
	assert.Contains(t, stderr, "[1/1]")
}

func TestPutMissingLocalFile(t *testing.T) {
	_, _, err := runSimulated(t, "put", filepath.Join(t.TempDir(), "nope"), "E:/")
	assert.Error(t, err)
}

func TestGetMissingRemoteFails(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runSimulated(t, "get", "E:/missing.bin", dir)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "missing.bin"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runSimulated(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pixlfs "+Version)
	assert.Contains(t, out, emulator.Version)
}

func TestInvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixlfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("protocol:\n  chunk_size: 0\n"), 0o644))

	_, _, err := runSimulated(t, "--config", path, "drives")
	assert.Error(t, err)
}

func TestArgumentValidation(t *testing.T) {
	_, _, err := runSimulated(t, "mv", "E:/a")
	assert.Error(t, err)

	_, _, err = runSimulated(t, "get", "E:/a")
	assert.Error(t, err)
}
