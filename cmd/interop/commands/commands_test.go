package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with an empty config file and the software backend.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("logging:\n  console: false\n"), 0o644))

	headlessResizes = nil
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", cfg, "--backend", "soft"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHeadlessCommand(t *testing.T) {
	png := filepath.Join(t.TempDir(), "out.png")
	out, err := execute(t, "headless", "--frames", "3", "--resize", "32x24@1",
		"--window-width", "48", "--window-height", "40", "--out", png)
	require.NoError(t, err)

	assert.Contains(t, out, "frames:         3")
	assert.Contains(t, out, "final extent:   32x24")
	assert.Contains(t, out, "resizes:        1")
	assert.FileExists(t, png)
}

func TestHeadlessCommandRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero frames", []string{"headless", "--frames", "0", "--out", ""}},
		{"bad resize", []string{"headless", "--frames", "1", "--resize", "32x24", "--out", ""}},
		{"bad msaa", []string{"headless", "--frames", "1", "--interop-msaa", "3", "--out", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestProbeCommand(t *testing.T) {
	out, err := execute(t, "probe", "--interop-msaa", "1", "--interop-handle-type", "opaque-fd")
	require.NoError(t, err)
	assert.Contains(t, out, "#0 Soft GPU")
	assert.Contains(t, out, "selection for export opaque-fd")
}
