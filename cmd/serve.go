// File: cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Joakim-Sael/webmcp-bridge/internal/browser"
	"github.com/Joakim-Sael/webmcp-bridge/internal/config"
	"github.com/Joakim-Sael/webmcp-bridge/internal/engine"
	"github.com/Joakim-Sael/webmcp-bridge/internal/lookup"
	"github.com/Joakim-Sael/webmcp-bridge/internal/navigation"
	"github.com/Joakim-Sael/webmcp-bridge/internal/observability"
	"github.com/Joakim-Sael/webmcp-bridge/internal/registry"
	"github.com/Joakim-Sael/webmcp-bridge/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Attach to the browser and serve page tools over MCP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// tabHost adapts the browser manager to what the registrar needs.
type tabHost struct {
	m *browser.Manager
}

func (h tabHost) Driver(tabID string) (engine.PageDriver, bool) {
	s, ok := h.m.Session(tabID)
	if !ok {
		return nil, false
	}
	return s, true
}

func (h tabHost) DeclaredToolNames(ctx context.Context, tabID string) ([]string, error) {
	s, ok := h.m.Session(tabID)
	if !ok {
		return nil, fmt.Errorf("tab %q is not tracked", tabID)
	}
	return s.DeclaredToolNames(ctx)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := observability.GetLogger()
	defer observability.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	settingsPath, err := cfg.Store.SettingsPath()
	if err != nil {
		return err
	}
	settings, err := store.OpenSettings(settingsPath, logger)
	if err != nil {
		return err
	}
	defer settings.Close()

	sessions := store.NewSessionStore(logger)
	hub := lookup.NewHubClient(cfg.Hub, settings, logger)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "webmcp-bridge",
		Version: Version,
	}, &mcp.ServerOptions{
		HasTools: true,
	})

	eng := engine.New(cfg.Engine, registry.NewElicitGate(logger), logger)
	manager := browser.NewManager(cfg.Browser, logger)
	reg := registry.NewRegistrar(server, tabHost{m: manager}, eng, cfg.MCP.AtomicReplace, logger)
	coord := navigation.NewCoordinator(ctx, hub, sessions, reg, logger)
	manager.SetHooks(coord)

	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Close()

	g, gctx := errgroup.WithContext(ctx)
	switch cfg.MCP.Transport {
	case "http":
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return server
		}, nil)
		srv := &http.Server{Addr: cfg.MCP.ListenAddr, Handler: handler}
		g.Go(func() error {
			logger.Info("MCP server listening.", zap.String("addr", cfg.MCP.ListenAddr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	default:
		g.Go(func() error {
			logger.Info("MCP server on stdio.")
			return server.Run(gctx, &mcp.StdioTransport{})
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("Shut down.")
	return err
}
