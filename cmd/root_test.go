package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/config"
)

// execute runs a pristine command tree with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig writes a config file with fast timeouts and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	body := `
logger:
  level: error
timeouts:
  short: 100ms
  medium: 500ms
  long: 1s
  extra_long: 2s
retry:
  max_retries: 0
  delay: 1ms
capture:
  screenshot_dir: ` + filepath.Join(dir, "shots") + `
` + extra
	path := filepath.Join(dir, "shopflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRootCommand_Version(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestRootCommand_HelpListsSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"run", "features", "install"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--base-url", "not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url must be an absolute URL")

	_, err = execute(t, "run", "--report-format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported results.format")
}

func TestRootCommand_UnreadableConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: [unclosed"), 0o644))

	_, err := execute(t, "--config", path, "install")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestInstallCommand(t *testing.T) {
	original := installBrowsers
	t.Cleanup(func() { installBrowsers = original })

	var gotBrowsers []string
	var gotCfg *config.Config
	installBrowsers = func(ctx context.Context, browsers []string, _ *zap.Logger) error {
		gotBrowsers = browsers
		cfg, err := configFromContext(ctx)
		gotCfg = cfg
		return err
	}

	_, err := execute(t, "--config", writeConfig(t, ""), "install", "chromium", "firefox")
	require.NoError(t, err)
	assert.Equal(t, []string{"chromium", "firefox"}, gotBrowsers)
	require.NotNil(t, gotCfg, "the loaded config travels in the command context")
	assert.Equal(t, "error", gotCfg.Logger.Level)
}

func TestBindFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "annotated", Annotations: map[string]string{
		"base-url": "target.base_url",
		"missing":  "target.catalog_fragment",
	}}
	cmd.Flags().String("base-url", "", "")
	require.NoError(t, cmd.Flags().Set("base-url", "https://flag.example/"))

	v := viper.New()
	v.SetDefault("target.catalog_fragment", "/entries")
	require.NoError(t, bindFlags(cmd, v))

	assert.Equal(t, "https://flag.example/", v.GetString("target.base_url"))
	assert.Equal(t, "/entries", v.GetString("target.catalog_fragment"), "annotations without a flag are ignored")
}

func TestConfigFromContext_Missing(t *testing.T) {
	_, err := configFromContext(context.Background())
	assert.EqualError(t, err, "configuration was not loaded")
}
