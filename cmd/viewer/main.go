package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/monview/internal/infrastructure/config"
	"github.com/GriffinCanCode/monview/internal/infrastructure/server"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Optional YAML or TOML config file")
	port := flag.String("port", "", "Viewer HTTP port (overrides VIEWER_PORT)")
	host := flag.String("host", "", "Viewer HTTP host (overrides VIEWER_HOST)")
	backend := flag.String("backend", "", "Monitor backend URL (overrides BACKEND_URL)")
	mode := flag.String("mode", "", "Acquisition mode: stream or poll (overrides ACQUIRE_MODE)")
	insecure := flag.Bool("insecure", false, "Skip TLS verification of the backend")
	dev := flag.Bool("dev", false, "Development mode (colored debug logs)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override env and file
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *backend != "" {
		cfg.Backend.URL = *backend
	}
	if *mode != "" {
		cfg.Acquire.Mode = *mode
	}
	if *insecure {
		cfg.Backend.InsecureTLS = true
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		if err := srv.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
	case err := <-errChan:
		_ = srv.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
