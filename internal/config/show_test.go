package config

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEffective_AllSectionsPresent(t *testing.T) {
	cfg := DefaultConfig()

	var buf bytes.Buffer
	err := RenderEffective(cfg, &buf)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "[playlists]")
	assert.Contains(t, output, "[sync]")
	assert.Contains(t, output, "[cleanup]")
	assert.Contains(t, output, "[queue]")
	assert.Contains(t, output, "[logging]")
	assert.Contains(t, output, "[device]")
}

func TestRenderEffective_ProtectedPatternsShown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.ProtectedPatterns = []string{".keep", ".nomedia"}

	var buf bytes.Buffer
	err := RenderEffective(cfg, &buf)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "protected_patterns")
	assert.Contains(t, output, ".keep")
	assert.Contains(t, output, ".nomedia")
}

func TestRenderEffective_LogFileShown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.LogFile = "/var/log/youtun4.log"

	var buf bytes.Buffer
	err := RenderEffective(cfg, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "log_file")
}

func TestRenderEffective_MountRootsShown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device.MountRoots = []string{"/media/usb", "/mnt/player"}

	var buf bytes.Buffer
	err := RenderEffective(cfg, &buf)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "mount_roots")
	assert.Contains(t, output, "/media/usb")
}

// failWriter is a writer that always fails, used to exercise error paths
// in the errWriter pattern.
type failWriter struct{}

var errWriteFailed = errors.New("write failed")

func (failWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

func TestRenderEffective_WriteError(t *testing.T) {
	cfg := DefaultConfig()

	err := RenderEffective(cfg, failWriter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errWriteFailed)
}

func TestJoinQuoted(t *testing.T) {
	assert.Equal(t, `"a", "b", "c"`, joinQuoted([]string{"a", "b", "c"}))
	assert.Equal(t, `"single"`, joinQuoted([]string{"single"}))
	assert.Equal(t, "", joinQuoted(nil))
}
