package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imageclassifier/internal/app"
	"github.com/tphakala/imageclassifier/internal/buildinfo"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx := app.New(buildinfo.NewContext("1.0.0", "2024-06-01"))
	t.Cleanup(ctx.Close)

	root := RootCommand(ctx)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  enabled: false\n"), 0o600))
	return path
}

func TestModelsCommand(t *testing.T) {
	out, err := execute(t, "--config", emptyConfig(t), "models")
	require.NoError(t, err)
	assert.Equal(t, "MobileNetV2 (default)\nResNet50\n", out)
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := "metrics:\n  enabled: false\nhistory:\n  enabled: true\n  sqlite:\n    path: " + filepath.Join(dir, "history.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	out, err := execute(t, "-c", path, "history", "-n", "5")
	require.NoError(t, err)
	assert.Equal(t, "No classifications recorded\n", out)
}

func TestHistoryCommand_Disabled(t *testing.T) {
	_, err := execute(t, "-c", emptyConfig(t), "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history is disabled")
}

func TestConfigCommand_PrintsYAML(t *testing.T) {
	out, err := execute(t, "-c", emptyConfig(t), "config")
	require.NoError(t, err)
	assert.Contains(t, out, "defaultmodel: MobileNetV2")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", path)
	require.Error(t, err, "existing config must not be overwritten")
}

func TestClassifyCommand_MissingModelsFails(t *testing.T) {
	_, err := execute(t, "-c", emptyConfig(t), "classify", "--model", "ResNet50", "photo.jpg")
	require.Error(t, err)
}

func TestServeCommand_MissingModelsFails(t *testing.T) {
	_, err := execute(t, "-c", emptyConfig(t), "serve", "--listen", "127.0.0.1:0")
	require.Error(t, err)
}

func TestClassifyCommand_RequiresImage(t *testing.T) {
	_, err := execute(t, "-c", emptyConfig(t), "classify")
	require.Error(t, err)
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0 (2024-06-01)")
}
