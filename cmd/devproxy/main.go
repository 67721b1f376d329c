package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/devproxy"
	"github.com/nhle/socialterm/internal/logging"
	"github.com/nhle/socialterm/internal/model"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "devproxy:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	path := os.Getenv("SOCIALTERM_CONFIG")
	if path == "" {
		path = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Log to stderr; the proxy has no UI competing for the terminal.
	logCfg := cfg.Log
	logCfg.File = ""
	flush, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	defer flush()
	log := logging.NewNamed("devproxy")

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	p, err := devproxy.New(cfg.Proxy.Routes)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Proxy.Listen,
		Handler:           devproxy.Router(p, cfg.Proxy),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.Int("routes", len(cfg.Proxy.Routes)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
