package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/festy23/pitcrew/internal/database/database"
	"github.com/festy23/pitcrew/internal/database/migrate"
	"github.com/festy23/pitcrew/internal/diff"
	"github.com/festy23/pitcrew/internal/webhook/signature"
	"github.com/festy23/pitcrew/pkg/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "reviewctl",
		Short:        "Operator tooling for the pitcrew review service",
		SilenceUsage: true,
	}
	root.AddCommand(newDiffstatCmd(), newSignCmd(), newMigrateCmd())
	return root
}

// readInput reads the named file, or stdin when args is empty or "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}

func newDiffstatCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "diffstat [file]",
		Short: "Summarize a unified diff read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			stats := diff.Stats(string(data))
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					diff.Statistics
					Hunks []diff.Hunk `json:"hunks"`
				}{stats, diff.ExtractChangedHunks(string(data))})
			}

			fmt.Fprintf(out, "files: %d\n", stats.TotalFiles)
			for _, f := range stats.Files {
				fmt.Fprintf(out, "  %s\n", f)
			}
			fmt.Fprintf(out, "additions: %d\ndeletions: %d\nnet: %d\n", stats.Additions, stats.Deletions, stats.NetLines)

			exts := make([]string, 0, len(stats.FileTypes))
			for ext := range stats.FileTypes {
				exts = append(exts, ext)
			}
			sort.Strings(exts)
			for _, ext := range exts {
				fmt.Fprintf(out, "type %s: %d\n", ext, stats.FileTypes[ext])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics and hunks as JSON")
	return cmd
}

func newSignCmd() *cobra.Command {
	var secret, algo string
	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Print the signature header value for a webhook body",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret is required")
			}
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			sig, err := signature.Sign(data, secret, signature.Algorithm(algo))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("WEBHOOK_SECRET"), "shared webhook secret (default $WEBHOOK_SECRET)")
	cmd.Flags().StringVar(&algo, "algorithm", string(signature.SHA256), "sha256 or sha1")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var dir string
	var steps int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:       "migrate up|down|version",
		Short:     "Manage the database schema using DB_* environment variables",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sugar, err := logger.New()
			if err != nil {
				sugar = zap.NewNop().Sugar()
			}
			defer func() { _ = sugar.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			db, err := database.New(ctx, sugar)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()

			out := cmd.OutOrStdout()
			switch args[0] {
			case "up":
				if err := migrate.Up(db, dir); err != nil {
					return err
				}
			case "down":
				if err := migrate.Down(db, dir, steps); err != nil {
					return err
				}
			}

			version, dirty, err := migrate.Version(db, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "path", migrate.GetMigrationsPath(), "migrations directory")
	cmd.Flags().IntVar(&steps, "steps", 1, "migrations to roll back with down; 0 rolls back all")
	cmd.Flags().DurationVar(&timeout, "connect-timeout", time.Minute, "database connection timeout")
	return cmd
}
