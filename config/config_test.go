package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("[bridge]\nworkers = 4\n"), "test")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Bridge.Workers)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultHistoryDatabase, cfg.History.Database)
	assert.Equal(t, "english", cfg.Device.PhoneLanguage)
	assert.Equal(t, "en-US", cfg.Device.Locale())
}

func TestParseFull(t *testing.T) {
	data := []byte(`
[bridge]
path = "/opt/platform-tools/adb"
wait_for_device = true
emulator = false
online_only = true
workers = 8
timeout = "30s"

[device]
database_path = "/srv/pulled"
phone_language = "english"
timezone = "Asia/Seoul"

[server]
addr = "127.0.0.1:9000"

[history]
database = "/var/lib/adbfleet/history.db"
`)
	cfg, err := Parse(data, "test")
	require.NoError(t, err)

	assert.Equal(t, "/opt/platform-tools/adb", cfg.Bridge.ResolvePath())
	assert.True(t, cfg.Bridge.WaitForDevice)
	assert.True(t, cfg.Bridge.OnlineOnly)
	timeout, err := cfg.Bridge.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
	assert.Equal(t, "Asia/Seoul", cfg.Device.Timezone)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestParseValidation(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"negative workers", "[bridge]\nworkers = -1\n"},
		{"bad timeout", "[bridge]\ntimeout = \"soon\"\n"},
		{"negative timeout", "[bridge]\ntimeout = \"-1s\"\n"},
		{"unknown language", "[device]\nphone_language = \"klingon\"\n"},
		{"unknown timezone", "[device]\ntimezone = \"Mars/Olympus\"\n"},
		{"empty addr", "[server]\naddr = \"\"\n"},
		{"unknown key", "[bridge]\nthreads = 3\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data), "test")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigValidation), "got %v", err)
		})
	}
}

func TestParseSyntaxErrorIsNotValidation(t *testing.T) {
	_, err := Parse([]byte("[bridge\n"), "test")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfigValidation))
}

func TestParseExpandsHome(t *testing.T) {
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	t.Setenv("HOME", "/home/tester")
	cfg, err := Parse([]byte("[history]\ndatabase = \"~/fleet.db\"\n"), "test")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/tester", "fleet.db"), cfg.History.Database)
}

func TestResolvePath(t *testing.T) {
	t.Setenv(PathEnv, "")
	assert.Empty(t, Bridge{}.ResolvePath())

	t.Setenv(PathEnv, "/usr/local/bin/adb")
	assert.Equal(t, "/usr/local/bin/adb", Bridge{}.ResolvePath())
	assert.Equal(t, "/opt/adb", Bridge{Path: "/opt/adb"}.ResolvePath())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFile)
	cfg := Default()
	cfg.Bridge.Timeout = "5s"
	cfg.Device.Timezone = "Asia/Seoul"

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCreateUsesPromptAnswers(t *testing.T) {
	original := runFormFunc
	t.Cleanup(func() { runFormFunc = original })
	runFormFunc = func(*huh.Form) error { return nil }

	path := filepath.Join(t.TempDir(), DefaultFile)
	cfg, err := Create(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.FileExists(t, path)
}

func TestCreateAborted(t *testing.T) {
	original := runFormFunc
	t.Cleanup(func() { runFormFunc = original })
	runFormFunc = func(*huh.Form) error { return huh.ErrUserAborted }

	path := filepath.Join(t.TempDir(), DefaultFile)
	_, err := Create(path)
	require.ErrorIs(t, err, huh.ErrUserAborted)
	assert.NoFileExists(t, path)
}
