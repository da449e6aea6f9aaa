package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/uboat/internal/server"
)

// ServeCmd runs the API server
type ServeCmd struct {
	Config string `short:"c" default:"uboat-server.hcl" help:"HCL config file, defaults apply when it is missing"`
	Addr   string `help:"Override the configured listen address (host:port)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	config, err := c.load()
	if err != nil {
		return err
	}

	logger := setupLogger(os.Stderr, g.Debug)
	if !g.Debug {
		level, err := log.ParseLevel(config.Server.LogLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	logger.Info("Loaded config",
		"file", c.Config,
		"max_runs", config.Server.MaxRuns,
		"max_concurrent", config.Server.MaxConcurrent,
		"policy", config.Simulation.Policy,
		"draws", config.Simulation.Draws,
	)
	return server.NewServer(config, logger, quartz.NewReal()).Start(ctx)
}

func (c *ServeCmd) load() (*server.ServerConfig, error) {
	config, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return nil, err
	}

	if c.Addr != "" {
		host, port, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return nil, fmt.Errorf("invalid --addr %q: %w", c.Addr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid --addr port %q", port)
		}
		config.Server.Address = host
		config.Server.Port = p
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}
