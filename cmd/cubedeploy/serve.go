package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cubedeploy/internal/httpapi"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr, seedDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("seed-dir") {
				cfg.SeedDir = seedDir
			}
			log := newLogger(cfg, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if n, err := a.deployer.MarkInterrupted(ctx); err != nil {
				return err
			} else if n > 0 {
				log.Warn().Int64("runs", n).Msg("marked interrupted runs as failed; resume them with POST /api/runs/{id}/resume")
			}

			if cfg.SeedDir != "" {
				added, skipped, err := a.seed(cfg.SeedDir)
				if err != nil {
					return err
				}
				log.Info().Str("dir", cfg.SeedDir).Strs("added", added).Strs("skipped", skipped).Msg("seeded models")
			}
			if *cfg.WatchDocument {
				go func() {
					if err := a.store.Watch(ctx, nil); err != nil {
						log.Warn().Err(err).Msg("manifest watch stopped; reading from disk on every call")
					}
				}()
			}

			httpapi.SetLogger(log.With().Str("component", "http").Logger())
			httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
			httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)
			httpapi.SetBaseContext(ctx)

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           httpapi.NewMux(a.deployer),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Addr).Str("document", a.store.Path()).Str("backend", cfg.Backend).Msg("cubedeploy listening")
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :3001")
	cmd.Flags().StringVar(&seedDir, "seed-dir", "", "Directory of model files merged into the manifest at startup")
	return cmd
}
