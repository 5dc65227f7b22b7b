package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/plugmon/internal/api"
	"codeberg.org/mutker/plugmon/internal/app"
	"codeberg.org/mutker/plugmon/internal/config"
	"codeberg.org/mutker/plugmon/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunUsage(t *testing.T) {
	assert.Equal(t, 2, run(nil))
	assert.Equal(t, 2, run([]string{"help"}))
	assert.Equal(t, 2, run([]string{"frobnicate"}))
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "collect", "prune", "export"} {
		cmd, ok := commands[name]
		assert.True(t, ok, name)
		assert.NotNil(t, cmd.run, name)
	}
	assert.True(t, commands["collect"].pidFile)
	assert.False(t, commands["serve"].pidFile)
	assert.False(t, commands["export"].pidFile)
}

// collectEnv points the upstream client at a fake device API and returns a
// database path in a temp dir.
func collectEnv(t *testing.T) string {
	t.Helper()

	for _, key := range []string{
		"PLUGMON_CONFIG", "PLUGMON_LOG_LEVEL", "PLUGMON_DATABASE",
		"SWITCHBOT_TOKEN", "SWITCHBOT_SECRET", "SWITCHBOT_DEVICE_ID",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"statusCode":100,"body":{"voltage":120.5,"weight":36.2,"power":"on"}}`))
	}))
	t.Cleanup(upstream.Close)

	t.Setenv("PLUGMON_SWITCHBOT_TOKEN", "token")
	t.Setenv("PLUGMON_SWITCHBOT_SECRET", "secret")
	t.Setenv("PLUGMON_SWITCHBOT_DEVICE_ID", "A")
	t.Setenv("PLUGMON_SWITCHBOT_BASE_URL", upstream.URL)

	return filepath.Join(t.TempDir(), "power.db")
}

func TestCollectWhileServing(t *testing.T) {
	database := collectEnv(t)

	cfg := &config.Config{
		LogLevel: "info",
		Database: database,
		SwitchBot: config.SwitchBotConfig{
			Token:   "token",
			Secret:  "secret",
			Timeout: time.Second,
		},
		Collector: config.CollectorConfig{Concurrency: 1},
	}
	serving, err := app.New(cfg, app.WithoutSinks())
	require.NoError(t, err)
	defer serving.Close()

	server := httptest.NewServer(api.New(serving).Handler())
	defer server.Close()

	assert.Equal(t, 0, run([]string{"collect", "--database", database, "--env-file", ""}))
	assert.Equal(t, 0, run([]string{"collect", "--database", database, "--env-file", ""}))

	readings, err := serving.Store.Recent(context.Background(), "A", 0)
	require.NoError(t, err)
	assert.Len(t, readings, 2)

	_, err = os.Stat(pid.PathFor(database))
	assert.True(t, os.IsNotExist(err))
}

func TestCollectFailsFastWhenAlreadyRunning(t *testing.T) {
	database := collectEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(database), 0o755))

	pidPath := pid.PathFor(database)
	require.NoError(t, pid.Write(pidPath))
	defer pid.Remove(pidPath)

	assert.Equal(t, 1, run([]string{"collect", "--database", database, "--env-file", ""}))
}
