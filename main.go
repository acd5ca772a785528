package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"qtermbloch/internal/challenge"
	"qtermbloch/internal/circuit"
	"qtermbloch/internal/config"
	"qtermbloch/internal/logger"
	"qtermbloch/internal/quantum"
	"qtermbloch/internal/server"
)

func main() {
	serve := flag.Bool("serve", false, "run the HTTP API instead of the editor")
	qasmFile := flag.String("qasm", "", "open a QASM file in the editor")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *serve {
		err = runServer(cfg)
	} else {
		err = runEditor(cfg, *qasmFile)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cfg *config.Config) error {
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	catalog, err := challenge.Load()
	if err != nil {
		return fmt.Errorf("load challenges: %w", err)
	}

	srv := server.New(server.Config{
		Log:     log,
		Config:  cfg,
		Engine:  quantum.NewEngine(log, cfg.SimWorkers, cfg.MaxQubits),
		Catalog: catalog,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}

func runEditor(cfg *config.Config, qasmFile string) error {
	// The terminal belongs to the UI, so logs only go to a file when asked.
	log := zerolog.Nop()
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		log = logger.New(logger.Config{Level: cfg.LogLevel, Output: f})
	}

	m := initialModel(quantum.NewEngine(log, cfg.SimWorkers, cfg.MaxQubits), log, cfg.DefaultShots)
	if qasmFile != "" {
		data, err := os.ReadFile(qasmFile)
		if err != nil {
			return err
		}
		c, err := circuit.ParseQASM(string(data))
		if err != nil {
			return fmt.Errorf("%s: %w", qasmFile, err)
		}
		m.circuit = c
		m.sync()
		m.dirty = false
	}

	log.Info().Str("qasm", qasmFile).Msg("Starting editor")
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
