package server

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/simulator"
	"github.com/lox/uboat/internal/theory"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server     ServerSettings      `hcl:"server,block"`
	Simulation *SimulationSettings `hcl:"simulation,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	// MaxRuns caps the trials in a single request.
	MaxRuns int `hcl:"max_runs,optional"`
	// MaxConcurrent caps batches running at once across all clients.
	MaxConcurrent int `hcl:"max_concurrent,optional"`
	Workers       int `hcl:"workers,optional"`
	// ProgressInterval is the minimum gap between websocket progress messages.
	ProgressInterval string `hcl:"progress_interval,optional"`
}

// SimulationSettings are the defaults for requests that leave fields out.
type SimulationSettings struct {
	Policy string `hcl:"policy,optional"`
	Draws  int    `hcl:"draws,optional"`
	Runs   int    `hcl:"runs,optional"`
	Exact  bool   `hcl:"exact,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	config := &ServerConfig{}
	config.applyDefaults()
	return config
}

// LoadServerConfig loads server configuration from HCL file
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.MaxRuns == 0 {
		c.Server.MaxRuns = simulator.DefaultMaxTrials
	}
	if c.Server.MaxConcurrent == 0 {
		c.Server.MaxConcurrent = 4
	}
	if c.Server.ProgressInterval == "" {
		c.Server.ProgressInterval = "250ms"
	}

	if c.Simulation == nil {
		c.Simulation = &SimulationSettings{}
	}
	if c.Simulation.Policy == "" {
		c.Simulation.Policy = sampler.DuplicatesAllowed.String()
	}
	if c.Simulation.Draws == 0 {
		c.Simulation.Draws = sampler.DefaultDraws
	}
	if c.Simulation.Runs == 0 {
		c.Simulation.Runs = 10000
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Server.LogLevel, err)
	}
	if c.Server.MaxRuns < 1 || c.Server.MaxRuns > simulator.DefaultMaxTrials {
		return fmt.Errorf("max_runs must be between 1 and %d, got %d", simulator.DefaultMaxTrials, c.Server.MaxRuns)
	}
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be positive, got %d", c.Server.MaxConcurrent)
	}
	if c.Server.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Server.Workers)
	}
	if d, err := time.ParseDuration(c.Server.ProgressInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid progress_interval %q", c.Server.ProgressInterval)
	}

	sim := c.Simulation
	if sim == nil {
		return fmt.Errorf("simulation block missing")
	}
	policy, err := sampler.ParsePolicy(sim.Policy)
	if err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if _, err := sampler.New(policy, sim.Draws); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if !sim.Exact {
		if _, err := theory.Reference(policy, sim.Draws); err != nil {
			return fmt.Errorf("simulation: %w", err)
		}
	}
	if sim.Runs < 1 || sim.Runs > c.Server.MaxRuns {
		return fmt.Errorf("simulation: runs must be between 1 and %d, got %d", c.Server.MaxRuns, sim.Runs)
	}

	return nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GetProgressInterval returns the parsed progress interval.
func (c *ServerConfig) GetProgressInterval() time.Duration {
	d, err := time.ParseDuration(c.Server.ProgressInterval)
	if err != nil {
		return 0
	}
	return d
}
