package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleo-dev/cleo/internal/accessor"
	"github.com/cleo-dev/cleo/internal/accessor/safety"
	"github.com/cleo-dev/cleo/internal/accessor/sqlitefile"
	_ "github.com/cleo-dev/cleo/internal/accessor/dual"
	_ "github.com/cleo-dev/cleo/internal/accessor/jsonfile"
	"github.com/cleo-dev/cleo/internal/audit"
	"github.com/cleo-dev/cleo/internal/config"
	"github.com/cleo-dev/cleo/internal/daemonlog"
	"github.com/cleo-dev/cleo/internal/domain/admin"
	"github.com/cleo-dev/cleo/internal/domain/lifecycledomain"
	"github.com/cleo-dev/cleo/internal/domain/release"
	"github.com/cleo-dev/cleo/internal/domain/session"
	"github.com/cleo-dev/cleo/internal/domain/taskwork"
	"github.com/cleo-dev/cleo/internal/domain/tasks"
	"github.com/cleo-dev/cleo/internal/gateway"
	"github.com/cleo-dev/cleo/internal/rpc"
	"github.com/cleo-dev/cleo/internal/security"
	"github.com/cleo-dev/cleo/internal/storage/sqlite"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start, stop, and check the background daemon",
	}
	cmd.AddCommand(newDaemonStartCmd(), newDaemonStopCmd(), newDaemonStatusCmd())
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd)
		},
	}
	cmd.Flags().Bool("json-log", false, "emit the daemon log as JSON instead of text")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask a running daemon to shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			_, err = client.Call(rpc.Request{Operation: rpc.OpShutdown})
			return err
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			health, err := client.Health()
			if err != nil {
				return err
			}
			fmt.Printf("status=%s version=%s uptime=%.1fs activeConns=%d/%d\n",
				health.Status, health.Version, health.Uptime, health.ActiveConns, health.MaxConns)
			return nil
		},
	}
}

// runDaemon wires the storage engine, domain services, gateway, and
// RPC server together and blocks until a shutdown signal or the
// "shutdown" operation arrives over the socket.
func runDaemon(cmd *cobra.Command) error {
	root, err := resolveProjectRoot()
	if err != nil {
		return err
	}
	stateDir := resolveStateDir(root)
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	jsonLog, _ := cmd.Flags().GetBool("json-log")
	logger, closer := daemonlog.New(daemonlog.Config{
		Path: filepath.Join(stateDir, "daemon.log"),
		JSON: jsonLog,
	})
	if closer != nil {
		defer closer.Close()
	}

	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(stateDir, "tasks.db"))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	cfg, err := config.Load(stateDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if watcher, err := cfg.Watch(ctx, stateDir, func() { logger.Info("config.json reloaded") }); err != nil {
		logger.Warn("config watch disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	sessions := session.New(store)
	svc := &gateway.Services{
		Tasks:     tasks.New(store),
		TaskWork:  taskwork.New(store),
		Sessions:  sessions,
		Lifecycle: lifecycledomain.New(store, nil),
		Admin:     admin.New(store, sessions, cfg),
		Release:   release.New(store),
		ConfigDir: stateDir,
	}

	// The sqlite engine reuses the domain layer's own connection rather
	// than going through accessor.Open (which would dial a second
	// connection to the same file); json/dual are config-selected and
	// go through the registry those packages' inits populate.
	var auditAccessor accessor.Accessor
	engine := config.StorageEngine(fmt.Sprint(cfg.Get("storage.engine")))
	if engine == "" {
		engine = config.EngineSQLite
	}
	switch engine {
	case config.EngineSQLite:
		auditAccessor = safety.Wrap(sqlitefile.New(store))
	default:
		auditAccessor, err = accessor.Open(ctx, accessor.Config{
			Engine:  accessor.Engine(engine),
			DBPath:  filepath.Join(stateDir, "tasks.db"),
			JSONDir: filepath.Join(stateDir, "json"),
		})
		if err != nil {
			return fmt.Errorf("open %s accessor: %w", engine, err)
		}
	}
	auditLogger := audit.NewLogger(auditAccessor)

	limits := map[security.Category]int{}
	if cfg.Get("rateLimiting.query") != nil {
		limits[security.CategoryQuery] = toInt(cfg.Get("rateLimiting.query"))
	}
	if cfg.Get("rateLimiting.mutate") != nil {
		limits[security.CategoryMutate] = toInt(cfg.Get("rateLimiting.mutate"))
	}
	if cfg.Get("rateLimiting.spawn") != nil {
		limits[security.CategorySpawn] = toInt(cfg.Get("rateLimiting.spawn"))
	}
	limiter := security.NewLimiter(limits)

	gw := gateway.New(svc, limiter, auditLogger, nil, root)

	server := rpc.New(rpc.Config{
		SocketPath: socketPath(stateDir),
		Version:    cliVersion,
		Gateway:    gw,
		Storage:    store,
		Log:        logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	<-server.WaitReady()
	fmt.Fprintf(os.Stderr, "cleo daemon listening at %s\n", socketPath(stateDir))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	select {
	case <-sigCh:
		return server.Stop()
	case err := <-errCh:
		return err
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
