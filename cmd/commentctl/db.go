package main

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blog-comment-widget/internal/config"
	"github.com/blog-comment-widget/internal/database"
	"github.com/blog-comment-widget/internal/legacy"
	"github.com/blog-comment-widget/internal/repository"
	"github.com/blog-comment-widget/pkg/logger"
)

// openDB loads configuration and connects to the database
func openDB() (*database.DB, *config.Config, zerolog.Logger, error) {
	log := logger.New()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, log, fmt.Errorf("load configuration: %w", err)
	}
	log = logger.NewWithOutput(logWriter(), cfg.Log.Level, cfg.Log.Format)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, nil, log, fmt.Errorf("connect to database: %w", err)
	}
	return db, cfg, log, nil
}

func newMigrateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "migrations directory (default MIGRATIONS_PATH or ./migrations)")

	migrationsPath := func(cfg *config.Config) string {
		if path != "" {
			return path
		}
		return cfg.Server.MigrationsPath
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, _, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.RunMigrations(migrationsPath(cfg))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, _, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.MigrateDown(migrationsPath(cfg))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "to <version>",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			db, cfg, _, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.MigrateToVersion(migrationsPath(cfg), uint(version))
		},
	})

	return cmd
}

func newImportCmd() *cobra.Command {
	var batchSize, maxErrors int

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import comments from a legacy NDJSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			db, cfg, log, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			repos := repository.New(db)
			im := legacy.NewImporter(repos.Comment, legacy.Options{
				BatchSize:         batchSize,
				PlaceholderAuthor: cfg.Widget.PlaceholderAuthor,
				MaxBodyRunes:      cfg.Widget.MaxBodyRunes,
				MaxErrors:         maxErrors,
			}, log)

			result, err := im.Import(cmd.Context(), in)
			if result != nil {
				printImportResult(cmd.OutOrStdout(), result)
			}
			return err
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 1000, "rows per insert batch")
	cmd.Flags().IntVar(&maxErrors, "max-errors", 1000, "maximum line errors to report")
	return cmd
}

func newExportCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all comments in the canonical schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			defer out.Close()

			db, _, log, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			repos := repository.New(db)
			count, err := legacy.NewExporter(repos.Comment, log).Export(cmd.Context(), out, format)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d comments\n", count)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "ndjson", "output format: ndjson or json")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}
