package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/faultline/internal/config"
	"github.com/dwsmith1983/faultline/internal/server"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	configPath  string
	addr        string
	noAutostart bool
	noWatch     bool
}

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the faultline HTTP API and background generator",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, nil)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to faultline.yaml (default ./faultline.yaml)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address, overrides server.addr")
	cmd.Flags().BoolVar(&opts.noAutostart, "no-autostart", false, "Do not start the generator until requested over the API")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Do not reload the generation section when the config file changes")
	return cmd
}

// runServe blocks until ctx is cancelled or the server fails. When ready is
// non-nil it receives the bound listen address.
func runServe(ctx context.Context, opts serveOptions, ready chan<- string) error {
	cfg, path, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	logger := newLogger(cfg.Log, stderr)

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var srvOpts []server.Option
	srvOpts = append(srvOpts, server.WithLogger(logger), server.WithVersion(Version))
	if rt.telemetry.Handler != nil {
		srvOpts = append(srvOpts, server.WithMetricsHandler(rt.telemetry.Handler))
	}
	srv := server.New(*cfg.Server, rt.engine, rt.scheduler, srvOpts...)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		_ = rt.shutdown(context.Background())
		return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
	}

	// Components outlive ctx so that shutdown can drain them in order.
	bg := context.WithoutCancel(ctx)
	rt.dispatcher.Start(bg)

	var w *config.Watcher
	if path != "" && !opts.noWatch {
		w = config.NewWatcher(path, rt.engine.ReplaceConfig, logger)
		if err := w.Start(bg); err != nil {
			logger.Warn("config hot reload disabled", "error", err)
			w = nil
		}
	}

	if cfg.Scheduler.Autostart && !opts.noAutostart {
		rt.scheduler.Start(bg)
	}

	color.Green("faultline %s listening on %s", Version, ln.Addr())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			color.Yellow("\nReceived shutdown signal, shutting down...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if w != nil {
			w.Stop(shutdownCtx)
		}
		if err := rt.shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	color.Green("Server stopped gracefully")
	return nil
}
