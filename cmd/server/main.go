// Package main is the entry point for the kotoba API server. Besides
// serving HTTP it runs migrations, imports vocabulary spreadsheets and mints
// access tokens for operators.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/config"
	"github.com/phrazzld/kotoba-api/internal/importer"
	"github.com/phrazzld/kotoba-api/internal/platform/logger"
	"github.com/phrazzld/kotoba-api/internal/service/auth"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "kotoba-api",
		Short:         "Japanese vocabulary practice API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./config.yaml if present)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "env file to load (default .env)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newImportCmd(opts))
	root.AddCommand(newTokenCmd(opts))
	return root
}

// loadRuntime loads configuration and installs the default logger.
func loadRuntime(opts *rootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadWithOptions(config.Options{
		EnvFile:    opts.envFile,
		ConfigFile: opts.configFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(logger.LoggerConfig{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("database_driver", cfg.Database.Driver))
	return cfg, l, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := loadRuntime(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b, err := openBackend(ctx, cfg.Database, l)
			if err != nil {
				return err
			}
			if migrateFirst {
				if _, err := b.migrator.Up(ctx); err != nil {
					_ = b.Close()
					return fmt.Errorf("failed to apply migrations: %w", err)
				}
			}

			app, err := newApplication(cfg, l, b)
			if err != nil {
				_ = b.Close()
				return err
			}
			return app.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Manage the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			b, err := openBackend(ctx, cfg.Database, l)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			if args[0] == "version" {
				v, err := b.migrator.Version(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\n", v)
				return nil
			}
			return b.migrator.Run(ctx, args[0])
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	icfg := importer.DefaultConfig()
	var noHeader bool

	cmd := &cobra.Command{
		Use:   "import <file.xlsx|file.csv>",
		Short: "Load vocabulary items from a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			b, err := openBackend(ctx, cfg.Database, l)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			icfg.SkipHeader = !noHeader
			res, err := importer.NewImporter(b.items, l).ImportFile(ctx, args[0], icfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "processed %d rows, imported %d items, %d duplicates, %d errors\n",
				res.Processed, res.Imported, res.Duplicates, len(res.Errors))
			for _, rowErr := range res.Errors {
				_, _ = fmt.Fprintln(out, "  "+rowErr.Error())
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&icfg.Sheet, "sheet", "", "worksheet name (default first sheet)")
	f.BoolVar(&noHeader, "no-header", false, "the first row holds data")
	f.StringVar(&icfg.Level, "level", "", "tag every row with this level instead of reading a level column")
	f.StringVar(&icfg.KanjiColumn, "kanji-col", icfg.KanjiColumn, "kanji column letter")
	f.StringVar(&icfg.ReadingColumn, "reading-col", icfg.ReadingColumn, "reading column letter")
	f.StringVar(&icfg.RomajiColumn, "romaji-col", icfg.RomajiColumn, "romaji column letter")
	f.StringVar(&icfg.MeaningColumn, "meaning-col", icfg.MeaningColumn, "meaning column letter")
	f.StringVar(&icfg.PartOfSpeechColumn, "pos-col", icfg.PartOfSpeechColumn, "part of speech column letter")
	f.StringVar(&icfg.LevelColumn, "level-col", icfg.LevelColumn, "level column letter")
	f.IntVar(&icfg.BatchSize, "batch-size", icfg.BatchSize, "items per write")
	return cmd
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "token --user <uuid>",
		Short: "Issue an access token for a learner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(strings.TrimSpace(userID))
			if err != nil || id == uuid.Nil {
				return fmt.Errorf("--user must be a non-nil UUID")
			}
			cfg, _, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			svc, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "learner UUID")
	return cmd
}
