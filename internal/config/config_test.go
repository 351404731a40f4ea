package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	Set(nil)
	SetConfigPath("")
	t.Cleanup(func() {
		viper.Reset()
		Set(nil)
		SetConfigPath("")
	})
}

func TestInit(t *testing.T) {
	t.Run("initializes with defaults when no config exists", func(t *testing.T) {
		resetConfig(t)
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("HOME", t.TempDir())

		oldWd, _ := os.Getwd()
		require.NoError(t, os.Chdir(t.TempDir()))
		defer func() { _ = os.Chdir(oldWd) }()

		require.NoError(t, Init())

		c := Get()
		require.NotNil(t, c)
		assert.Equal(t, "", c.Wayland.Display)
		assert.Equal(t, time.Duration(0), c.Wayland.RoundtripTimeout)
	})

	t.Run("reads an explicit config file", func(t *testing.T) {
		resetConfig(t)

		path := filepath.Join(t.TempDir(), "gwayland.toml")
		content := `[wayland]
display = "wayland-7"
runtime_dir = "/run/user/4242"
roundtrip_timeout = "3s"

[logging]
log_level = "debug"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		SetConfigPath(path)

		require.NoError(t, Init())

		c := Get()
		assert.Equal(t, "wayland-7", c.Wayland.Display)
		assert.Equal(t, "/run/user/4242", c.Wayland.RuntimeDir)
		assert.Equal(t, 3*time.Second, c.Wayland.RoundtripTimeout)
		assert.Equal(t, "debug", c.Logging.LogLevel)
		assert.Equal(t, path, GetConfigPath())
	})

	t.Run("handles invalid TOML", func(t *testing.T) {
		resetConfig(t)

		path := filepath.Join(t.TempDir(), "gwayland.toml")
		require.NoError(t, os.WriteFile(path, []byte("[wayland\ndisplay = 1"), 0644))
		SetConfigPath(path)

		assert.Error(t, Init())
	})
}

func TestGetReturnsDefaultsWhenUninitialized(t *testing.T) {
	resetConfig(t)
	assert.Equal(t, &DefaultConfig, Get())
}

func TestSocketName(t *testing.T) {
	resetConfig(t)

	t.Setenv("WAYLAND_DISPLAY", "wayland-env")
	assert.Equal(t, "wayland-env", SocketName())

	Set(&Config{Wayland: WaylandConfig{Display: "wayland-cfg"}})
	assert.Equal(t, "wayland-cfg", SocketName())
}

func TestRuntimeDir(t *testing.T) {
	resetConfig(t)

	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000", RuntimeDir())

	Set(&Config{Wayland: WaylandConfig{RuntimeDir: "/tmp/rt"}})
	assert.Equal(t, "/tmp/rt", RuntimeDir())
}

func TestGetConfigPathUsesXDGConfigHome(t *testing.T) {
	resetConfig(t)

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "gwayland", "gwayland.toml"), GetConfigPath())
}
