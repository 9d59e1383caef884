package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Journal  string `json:"journal"`
	Username string `json:"username"`
}

func TestReadConfigWithLocalOverride(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(
		filepath.Join(dir, "config.json5"),
		[]byte(`{ journal: "sicon", username: "editor" }`),
		0o644,
	)
	require.NoError(t, err)
	err = os.WriteFile(
		filepath.Join(dir, "config.local.json5"),
		[]byte(`{ username: "editor-local" }`),
		0o644,
	)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "sicon", cfg.Journal)
	require.Equal(t, "editor-local", cfg.Username)
}

func TestReadConfigNotFound(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvFallbackOrder(t *testing.T) {
	t.Setenv("REFASSIST_TEST_SECOND", "fallback")
	require.Equal(t, "fallback", Env("REFASSIST_TEST_FIRST", "REFASSIST_TEST_SECOND"))

	t.Setenv("REFASSIST_TEST_FIRST", "primary")
	require.Equal(t, "primary", Env("REFASSIST_TEST_FIRST", "REFASSIST_TEST_SECOND"))
}
