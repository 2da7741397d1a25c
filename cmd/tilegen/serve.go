package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lawnchairsociety/tilegen/internal/logger"
	"github.com/lawnchairsociety/tilegen/internal/server"
)

// ServeCmd runs the websocket service until interrupted.
type ServeCmd struct {
	Address string `short:"a" help:"Listen address. Defaults to server.address."`
	NoStore bool   `help:"Run without a database: no map storage, no conflict log."`
}

func (c *ServeCmd) Run(app *App) error {
	cfg := *app.Config
	if c.Address != "" {
		cfg.Server.Address = c.Address
	}

	srv := server.NewServer(&cfg, app.Rulesets)

	if !c.NoStore {
		db, err := app.OpenDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		srv.SetStore(db)
	}

	origins := cfg.Server.WebSocket.AllowedOrigins
	switch {
	case len(origins) == 0:
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	case len(origins) == 1 && origins[0] == "*":
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	default:
		logger.Info("WebSocket CORS policy", "allowed_origins", origins)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		return err
	case <-sigChan:
	}

	logger.Info("Shutting down generation service")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-errCh
}
