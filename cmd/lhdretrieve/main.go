package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lhdtools/lhdretrieve/internal/config"
	"github.com/lhdtools/lhdretrieve/internal/env"
	"github.com/lhdtools/lhdretrieve/internal/history"
	"github.com/lhdtools/lhdretrieve/internal/retrieve"
)

var version = "0.3.0"

var (
	cfgFile          string
	retrievePathFlag string
	workDirFlag      string
	verbose          bool
)

var rootCmd = &cobra.Command{
	Use:   "lhdretrieve",
	Short: "Retrieve LHD diagnostic measurement data",
	Long: `lhdretrieve pulls diagnostic measurement data from the LHD data
server by driving the facility's Retrieve.exe tool, parses its output
files into numeric data, and removes every temporary file afterward.

The tool runs on native Windows or inside WSL (where the Windows
install tree is reachable under /mnt/c). Run 'lhdretrieve doctor' to
check your environment.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/lhdretrieve/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&retrievePathFlag, "retrieve-path", "", "path to Retrieve.exe (overrides probing)")
	rootCmd.PersistentFlags().StringVar(&workDirFlag, "work-dir", "", "working directory for temporary files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig layers command-line overrides over the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}
	if retrievePathFlag != "" {
		cfg.RetrievePath = retrievePathFlag
	}
	if workDirFlag != "" {
		cfg.WorkingDir = workDirFlag
	}
	return cfg, nil
}

func buildLocator(cfg config.Config, info env.EnvironmentInfo) env.Locator {
	var opts []env.Option
	if cfg.RetrievePath != "" {
		opts = append(opts, env.WithExplicitPath(cfg.RetrievePath))
	}
	if len(cfg.ExtraCandidatePaths) > 0 {
		opts = append(opts, env.WithExtraCandidates(cfg.ExtraCandidatePaths))
	}
	return env.NewLocator(info, opts...)
}

func buildRetriever(cfg config.Config, locator env.Locator) (*retrieve.Retriever, error) {
	return retrieve.New(retrieve.Options{
		Locator: locator,
		WorkDir: cfg.WorkingDir,
		Timeout: cfg.Timeout(),
		Logger:  slog.Default(),
	})
}

// openHistory opens the retrieval log. History is best-effort: a broken
// database must never block a retrieval, so failures degrade to nil with
// a warning.
func openHistory(cfg config.Config) *history.Store {
	if cfg.HistoryDB == "" {
		return nil
	}
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		slog.Warn("retrieval history disabled", "path", cfg.HistoryDB, "err", err)
		return nil
	}
	return store
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
