package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/livetemplate/listingkit/internal/config"
	"github.com/livetemplate/listingkit/internal/server"
	"github.com/livetemplate/listingkit/internal/store"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	config string
	port   int
	host   string
	watch  bool
	debug  bool
}

func newServeCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve the document preview and editor",
		Long: `Serve starts the preview and editor for the documents in dir (default: the
current directory). listingkit.yaml in dir is loaded unless --config is given;
flags override the file.

  /               document index
  /d/{id}         live preview
  /d/{id}/edit    inline editor
  /api/...        REST API (when api.enabled is set)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			app, err := newApp(cmd, dir, opts)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.run(cmd.Context())
		},
	}
	bindServeFlags(cmd, &opts)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, opts *serveOptions) {
	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "Config file (default: <dir>/listingkit.yaml)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (default: server.port)")
	cmd.Flags().StringVar(&opts.host, "host", "", "Host to bind (default: server.host)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Reload documents changed on disk")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Debug mode: log at debug level and accept any websocket origin")
}

// app is a configured server ready to listen.
type app struct {
	cfg    *config.Config
	dir    string
	store  store.Store
	server *server.Server
	logger *zap.Logger
	out    io.Writer
}

func newApp(cmd *cobra.Command, dir string, opts serveOptions) (*app, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("directory does not exist: %s", dir)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	cfg, err := loadConfig(opts.config, absDir)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if flags.Changed("host") {
		cfg.Server.Host = opts.host
	}
	if flags.Changed("watch") {
		cfg.Features.HotReload = opts.watch
	}
	if opts.debug {
		cfg.Server.Debug = true
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Storage.Path = storagePath(cfg.Storage, absDir)

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.New(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.GetType(), err)
	}

	srvOpts := []server.Option{server.WithLogger(logger)}
	if gen, err := buildGenerator(cmd.Context(), cfg, logger); err != nil {
		logger.Warn("generation disabled", zap.Error(err))
	} else {
		srvOpts = append(srvOpts, server.WithGenerator(gen))
	}

	a := &app{
		cfg:    cfg,
		dir:    absDir,
		store:  st,
		server: server.New(cfg, st, srvOpts...),
		logger: logger,
		out:    cmd.OutOrStdout(),
	}
	if cfg.Features.HotReload {
		if err := a.server.EnableWatch(); err != nil {
			logger.Warn("hot reload disabled", zap.Error(err))
			cfg.Features.HotReload = false
		}
	}
	return a, nil
}

// storagePath resolves relative file and sqlite paths against the served
// directory.
func storagePath(cfg config.StorageConfig, dir string) string {
	switch {
	case cfg.GetType() == "postgres":
		return cfg.Path
	case cfg.GetType() == "file" && cfg.Path == "":
		return dir
	}
	path := cfg.GetPath()
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func (a *app) addr() string {
	return fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
}

func (a *app) printBanner() {
	out := a.out
	fmt.Fprintln(out, TitleStyle.Render("🛍  "+a.cfg.Title))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Serving:  %s\n", a.dir)
	fmt.Fprintf(out, "Storage:  %s\n", a.store.Name())
	if a.cfg.IsAPIEnabled() {
		fmt.Fprintf(out, "API:      %s\n", InfoStyle.Render("/api/documents"))
	}
	if a.cfg.Features.HotReload {
		fmt.Fprintln(out, "Watch:    documents reload when changed on disk")
	}
	fmt.Fprintf(out, "\n🌐 Server running at %s\n", InfoStyle.Render("http://"+a.addr()))
	fmt.Fprintln(out, HelpStyle.Render("Press Ctrl+C to stop"))
	fmt.Fprintln(out)
}

// run listens until the context is cancelled or a signal arrives, then
// shuts down gracefully.
func (a *app) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              a.addr(),
		Handler:           a.server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.printBanner()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *app) Close() error {
	err := a.server.Close()
	if cerr := a.store.Close(); err == nil {
		err = cerr
	}
	_ = a.logger.Sync()
	return err
}
