package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "interop.log")
	require.NoError(t, Init("debug", path, false))
	assert.Equal(t, logrus.DebugLevel, Get().GetLevel())

	Component("sync").Debug("fence signaled")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fence signaled")
	assert.Contains(t, string(data), "component=sync")
}

func TestInitUnknownLevel(t *testing.T) {
	require.NoError(t, Init("chatty", "", false))
	assert.Equal(t, logrus.InfoLevel, Get().GetLevel())
}
