package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/valid8/valid8/internal/config"
	"github.com/valid8/valid8/internal/llm"
)

// buildInvoker wires the configured text generator behind the retrying
// invoker shared by the ingestion and validation services.
func buildInvoker(cfg *config.Config) (*llm.Invoker, llm.TextGenerator, error) {
	gen, err := llm.NewGenerator(cfg.LLM, cfg.Ollama)
	if err != nil {
		return nil, nil, err
	}

	inv := llm.NewInvoker(gen, llm.InvokerConfig{
		Timeout:        time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		MaxAttempts:    cfg.LLM.RetryAttempts,
		InitialBackoff: time.Duration(cfg.LLM.RetryBackoffSecs) * time.Second,
		MaxRPS:         cfg.LLM.RequestsPerSecond,
	})
	return inv, gen, nil
}

// serveHTTP runs the handler until the context is cancelled, then
// shuts down gracefully.
func serveHTTP(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
