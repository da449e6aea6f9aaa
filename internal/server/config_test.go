package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/uboat/internal/simulator"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	config, err := LoadServerConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8000", config.GetServerAddress())
	assert.Equal(t, simulator.DefaultMaxTrials, config.Server.MaxRuns)
	assert.Equal(t, "duplicates", config.Simulation.Policy)
	assert.Equal(t, 5, config.Simulation.Draws)
	assert.Equal(t, 250*time.Millisecond, config.GetProgressInterval())
	assert.NoError(t, config.Validate())
}

func TestLoadServerConfig(t *testing.T) {
	path := writeConfig(t, `
server {
  address   = "0.0.0.0"
  port      = 9000
  log_level = "debug"
  max_runs  = 5000
  workers   = 2
}

simulation {
  policy = "unique"
  draws  = 6
  runs   = 100
}
`)

	config, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, "0.0.0.0:9000", config.GetServerAddress())
	assert.Equal(t, "debug", config.Server.LogLevel)
	assert.Equal(t, 5000, config.Server.MaxRuns)
	assert.Equal(t, 2, config.Server.Workers)
	assert.Equal(t, 4, config.Server.MaxConcurrent)
	assert.Equal(t, "unique", config.Simulation.Policy)
	assert.Equal(t, 6, config.Simulation.Draws)
	assert.Equal(t, 100, config.Simulation.Runs)
}

func TestLoadServerConfigWithoutSimulationBlock(t *testing.T) {
	config, err := LoadServerConfig(writeConfig(t, "server {\n  port = 8123\n}\n"))
	require.NoError(t, err)
	require.NotNil(t, config.Simulation)
	assert.Equal(t, 10000, config.Simulation.Runs)
	assert.NoError(t, config.Validate())
}

func TestLoadServerConfigParseError(t *testing.T) {
	_, err := LoadServerConfig(writeConfig(t, "server {\n  port = \n"))
	assert.Error(t, err)

	_, err = LoadServerConfig(writeConfig(t, "server {\n  colour = \"red\"\n}\n"))
	assert.Error(t, err)
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		ok     bool
	}{
		{"defaults", func(*ServerConfig) {}, true},
		{"port", func(c *ServerConfig) { c.Server.Port = 70000 }, false},
		{"log level", func(c *ServerConfig) { c.Server.LogLevel = "loud" }, false},
		{"max runs", func(c *ServerConfig) { c.Server.MaxRuns = -1 }, false},
		{"max runs above ceiling", func(c *ServerConfig) { c.Server.MaxRuns = simulator.DefaultMaxTrials + 1 }, false},
		{"max runs at ceiling", func(c *ServerConfig) { c.Server.MaxRuns = simulator.DefaultMaxTrials }, true},
		{"workers", func(c *ServerConfig) { c.Server.Workers = -2 }, false},
		{"progress interval", func(c *ServerConfig) { c.Server.ProgressInterval = "soon" }, false},
		{"zero progress interval", func(c *ServerConfig) { c.Server.ProgressInterval = "0s" }, false},
		{"policy", func(c *ServerConfig) { c.Simulation.Policy = "sideways" }, false},
		{"draws", func(c *ServerConfig) { c.Simulation.Draws = 12 }, false},
		{"no reference table", func(c *ServerConfig) { c.Simulation.Draws = 4 }, false},
		{"exact table", func(c *ServerConfig) { c.Simulation.Draws = 4; c.Simulation.Exact = true }, true},
		{"runs above max", func(c *ServerConfig) { c.Server.MaxRuns = 10; c.Simulation.Runs = 11 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultServerConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
