package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bcgov/healthgateway-sub024/internal/config"
	"github.com/bcgov/healthgateway-sub024/internal/platform/audit"
	"github.com/bcgov/healthgateway-sub024/internal/platform/db"
	"github.com/bcgov/healthgateway-sub024/internal/platform/tokenexchange"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gateway-server",
		Short:        "Health Gateway request proxy",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(auditCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build server")
		return err
	}

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Str("version", version).
			Str("auth_mode", cfg.ResolvedAuthMode()).
			Str("audit_store", cfg.AuditStore).
			Msg("starting gateway server")
		if err := app.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			app.Close(context.Background())
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down gateway server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	app.Close(shutdownCtx)
	logger.Info().Msg("gateway server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres audit store",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd, statuses)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, db.Migrations()))
}

func printMigrationStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

// tokenCmd performs one client credentials exchange. It prints what was
// granted, never the token itself.
func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Check the token exchange configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateToken(); err != nil {
				return err
			}

			client, err := newTokenClient(cfg, zerolog.Nop(), nil)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.TokenTimeout+time.Second)
			defer cancel()

			tok, err := client.GetToken(ctx)
			if err != nil {
				return err
			}
			printToken(cmd, tok, time.Now())
			return nil
		},
	}
}

func printToken(cmd *cobra.Command, tok tokenexchange.AccessToken, now time.Time) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "expires at: %s (in %s)\n", tok.Expiry.Format(time.RFC3339), tok.Remaining(now).Round(time.Second))
	scopes := strings.Join(tok.Scope, " ")
	if scopes == "" {
		scopes = "(none)"
	}
	fmt.Fprintf(out, "scopes:     %s\n", scopes)
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}

	var actor, resource string
	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent audit events for an actor or a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (actor == "") == (resource == "") {
				return errors.New("exactly one of --actor or --resource is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateAudit(); err != nil {
				return err
			}

			ctx := context.Background()
			stores, err := openAuditStores(ctx, cfg, zerolog.Nop())
			if err != nil {
				return err
			}
			defer stores.Close(ctx)

			q, err := audit.AsQuerier(stores.primary)
			if err != nil {
				return err
			}
			var events []audit.Event
			if actor != "" {
				events, err = q.ListByActor(ctx, actor, offset, limit)
			} else {
				events, err = q.ListByResource(ctx, resource, offset, limit)
			}
			if err != nil {
				return err
			}
			printEvents(cmd, events)
			return nil
		},
	}
	list.Flags().StringVar(&actor, "actor", "", "Actor ID to filter by")
	list.Flags().StringVar(&resource, "resource", "", "Resource name to filter by")
	list.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	list.Flags().IntVar(&offset, "offset", 0, "Number of newest matching events to skip")
	cmd.AddCommand(list)
	return cmd
}

func printEvents(cmd *cobra.Command, events []audit.Event) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tACTOR\tRESOURCE\tACTION\tSTATUS\tRESULT\tTRACE ID")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			ev.Timestamp.UTC().Format(time.RFC3339), ev.ActorID, ev.ResourceName,
			ev.Action, ev.StatusCode, ev.ResultCode, ev.TraceID)
	}
	w.Flush()
}
