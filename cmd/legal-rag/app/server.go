// Package app provides the legal RAG server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/legal-rag/cmd/legal-rag/app/options"
	legalrag "github.com/kart-io/legal-rag/internal/legalrag"
	"github.com/kart-io/legal-rag/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `Legal RAG Service

Hybrid retrieval and query intelligence over legal document chunks.

This server provides:
  - Hybrid vector and keyword search with legal-aware reranking
  - Cited question answering with confidence scoring
  - Query optimization, performance analysis and suggestions
  - Document comparison and bounded-parallel batch question answering`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(legalrag.Name),
		app.WithShortDescription("Legal hybrid retrieval and question answering service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
