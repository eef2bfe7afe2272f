package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"plower/internal/display"
	"plower/internal/logger"
	"plower/internal/proxy"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Gemini proxy server",
	Long: `Run an HTTP proxy that forwards prompts to Gemini with the server's own
API key (GEMINI_API_KEY, also read from .env). Clients POST
{"model","prompt","temperature"} to /api/gemini_proxy and receive
{"response": text} or {"detail": message}.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		closer, err := logger.Configure(logger.Options{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		if err != nil {
			return err
		}
		defer closer.Close()
		log := logger.GetLogger()

		addr := cfg.Proxy.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		ctx := cmd.Context()
		stderr := cmd.ErrOrStderr()
		var gen proxy.Generator
		if key := os.Getenv(cfg.Proxy.KeyEnv); key != "" {
			g, err := proxy.NewGeminiGenerator(ctx, key, "")
			if err != nil {
				return err
			}
			gen = g
		} else {
			display.Notice(stderr, display.Warning, fmt.Sprintf("%s is not set; prompts will be answered with 503.", cfg.Proxy.KeyEnv))
			log.WithField("env", cfg.Proxy.KeyEnv).Warn("proxy started without an API key")
		}

		srv := proxy.NewServer(gen, log).Create(addr)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		display.Notice(stderr, display.Info, "Gemini proxy listening on "+addr)
		log.WithField("addr", addr).Info("proxy listening")

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Info("proxy stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, localhost:8001)")
}
