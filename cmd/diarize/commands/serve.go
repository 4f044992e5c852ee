package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/diarize/pkg/stream"
)

var (
	serveListen    string
	serveSaveEvery int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve diarization sessions over WebSocket",
	Long: `Serve diarization sessions over WebSocket.

Clients connect to ws://<addr>/ws?session=<name> and send binary messages
of 16 kHz mono 16-bit PCM. Each message is answered with a JSON result.
Text messages carry JSON commands: stats, reset, save, sensitivity.

Each session has its own engine. Profiles are loaded from the context's
store on connect and saved in the background and on disconnect.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: context listen or :8790)")
	serveCmd.Flags().IntVar(&serveSaveEvery, "save-every", stream.DefaultSaveEvery, "classified chunks between background saves")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, stores, err := openContextStores(ctx)
	if err != nil {
		return err
	}
	defer stores.Close()

	addr := c.ListenAddr()
	if serveListen != "" {
		addr = serveListen
	}

	engineCfg := c.Engine
	engineCfg.Logger = slog.Default()
	srv := stream.NewServer(stream.Config{
		Engine:    engineCfg,
		Open:      stores.Opener(),
		SaveEvery: serveSaveEvery,
		Logger:    slog.Default(),
	})

	hs := &http.Server{Addr: addr, Handler: srv}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("diarize server starting", "addr", addr, "context", c.Name, "store", stores.kind)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down", "sessions", srv.Sessions())
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	// Hijacked websocket connections are not covered by Shutdown.
	return srv.Close()
}
