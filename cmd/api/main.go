package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	httpadapter "github.com/melih/lighthouse-router/internal/adapters/http"
	"github.com/melih/lighthouse-router/internal/bootstrap"
	"github.com/melih/lighthouse-router/internal/config"
	"github.com/melih/lighthouse-router/internal/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lighthouse-router",
		Short: "Forward every HTTP request to a single managed container",
		Long: `lighthouse-router resolves one named container on the local Docker engine,
creating or waking it when needed, and relays every inbound request to it on port 8080.
Every flag can also be set through a ROUTER_* environment variable.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), os.LookupEnv)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log := logger.InitLogger(cfg.LoggerConfig())
	for _, k := range cfg.Container.MissingEnv {
		log.Warn().Str("key", k).Msg("container variable is not set, forwarding it empty")
	}

	def := cfg.Definition()
	platform, err := bootstrap.NewPlatform(def, log)
	if err != nil {
		return err
	}
	defer platform.Close()

	fwd := bootstrap.NewForwarder(platform, def, log)

	apps := map[string]*fiber.App{
		cfg.Listen: httpadapter.NewProxyApp(fwd, logger.ForComponent(log, "edge")),
	}
	if cfg.AdminListen != "" {
		apps[cfg.AdminListen] = httpadapter.NewAdminApp(platform, def.Identity, logger.ForComponent(log, "admin"))
	}

	// Bind every address up front: a bind error fails fast, and closing the
	// listener on shutdown stops a server even if it has not started serving.
	listeners := make(map[string]net.Listener, len(apps))
	for addr, app := range apps {
		ln, err := net.Listen(app.Config().Network, addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		listeners[addr] = ln
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return platform.RunIdleSleeper(gctx)
	})
	for addr, app := range apps {
		addr, app := addr, app
		ln := listeners[addr]
		g.Go(func() error {
			log.Info().
				Str("addr", ln.Addr().String()).
				Str("container", def.Identity.String()).
				Int("port", def.Port).
				Msg("server starting")
			if err := app.Listener(ln); err != nil && gctx.Err() == nil {
				return fmt.Errorf("serve on %s: %w", addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		for addr, app := range apps {
			if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
				log.Error().Err(err).Msg("shutdown failed")
			}
			_ = listeners[addr].Close()
		}
		return nil
	})

	return g.Wait()
}
