package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/medai/medai/internal/config"
	"github.com/medai/medai/internal/loader"
	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/memstore"
	"github.com/medai/medai/internal/platform/db"
	"github.com/medai/medai/internal/rules"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medai-server",
		Short: "Diabetes management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(rulesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			memory, _ := cmd.Flags().GetBool("memory")
			return runServer(memory)
		},
	}
	cmd.Flags().Bool("memory", false, "Serve from a seeded in-memory store instead of Postgres")
	return cmd
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	return db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	})
}

func runServer(memory bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx := context.Background()

	var (
		r    repos
		pool *pgxpool.Pool
		opts []logic.Option
	)
	if memory {
		store := memstore.New()
		store.Seed()
		r = memRepos(store)
		logger.Warn().Msg("serving from the in-memory store, data is lost on exit")
	} else {
		pool, err = openPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		r = pgRepos(pool)
		opts = append(opts, logic.WithTxBeginner(pool))
	}

	engine, err := newEngine(cfg, logger, r, opts...)
	if err != nil {
		return fmt.Errorf("activate rules: %w", err)
	}

	e := newServer(cfg, logger, engine, r)
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
		if err := db.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool); err != nil {
			return fmt.Errorf("register pool metrics: %w", err)
		}
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("memory", memory).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			schema, dir := migrateTarget(cmd, cfg)

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	migrateFlags(upCmd)
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			schema, dir := migrateTarget(cmd, cfg)

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(os.Stdout, schema, statuses)
			return nil
		},
	}
	migrateFlags(statusCmd)
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrateFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", "", "Target schema (default DB_SCHEMA)")
	cmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
}

func migrateTarget(cmd *cobra.Command, cfg *config.Config) (schema, dir string) {
	schema, _ = cmd.Flags().GetString("schema")
	dir, _ = cmd.Flags().GetString("dir")
	if schema == "" {
		schema = cfg.DBSchema
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	return schema, dir
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load CSV files into the database through the rule engine",
	}

	patientsCmd := &cobra.Command{
		Use:   "patients",
		Short: "Load patients with their medications and glucose values",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			f, err := loader.ParseFormat(format)
			if err != nil {
				return err
			}
			return runLoad(cmd, func(ctx context.Context, l *loader.Loader, in io.Reader) (*loader.Result, error) {
				return l.Patients(ctx, in, f)
			})
		},
	}
	patientsCmd.Flags().String("file", "", "CSV file to load")
	patientsCmd.Flags().String("format", string(loader.FormatFull), "CSV layout: full or ten")
	_ = patientsCmd.MarkFlagRequired("file")
	cmd.AddCommand(patientsCmd)

	insulinCmd := &cobra.Command{
		Use:   "insulin-rules",
		Short: "Load the insulin sliding scale",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, func(ctx context.Context, l *loader.Loader, in io.Reader) (*loader.Result, error) {
				return l.InsulinRules(ctx, in)
			})
		},
	}
	insulinCmd.Flags().String("file", "", "CSV file to load")
	_ = insulinCmd.MarkFlagRequired("file")
	cmd.AddCommand(insulinCmd)

	return cmd
}

type loadFunc func(ctx context.Context, l *loader.Loader, in io.Reader) (*loader.Result, error)

func runLoad(cmd *cobra.Command, load loadFunc) error {
	path, _ := cmd.Flags().GetString("file")
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	r := pgRepos(pool)
	engine, err := newEngine(cfg, logger, r, logic.WithTxBeginner(pool))
	if err != nil {
		return fmt.Errorf("activate rules: %w", err)
	}

	res, err := load(ctx, loader.New(engine, r.drugs, logger), in)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d row(s), skipped %d, %d error(s).\n", res.Loaded, res.Skipped, len(res.Errors))
	for _, re := range res.Errors {
		fmt.Printf("  line %d: %s\n", re.Line, re.Error)
	}
	return nil
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the declared rules",
	}

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print the rule report, listing any dependency cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return writeReport(os.Stdout, cfg.StrictClinicalRanges, format)
		},
	}
	reportCmd.Flags().String("format", "text", "Output format: text, yaml or json")
	cmd.AddCommand(reportCmd)

	return cmd
}

// writeReport prints the declared rules without activating them, so a bank
// with cycles is still reported.
func writeReport(w io.Writer, strict bool, format string) error {
	bank := rules.NewBank(rules.Deps{}, rules.Options{StrictRanges: strict})
	rep, err := bank.Report()
	if err != nil {
		return err
	}
	var out []byte
	switch format {
	case "", "text":
		out = []byte(rep.String())
	case "yaml":
		out, err = rep.YAML()
	case "json":
		out, err = rep.JSON()
	default:
		return fmt.Errorf("unknown format %q, want text, yaml or json", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
