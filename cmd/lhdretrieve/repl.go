package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lhdtools/lhdretrieve/internal/env"
	"github.com/lhdtools/lhdretrieve/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive retrieval shell",
	Long: `Start an interactive shell for exploring shots one channel at a time.

Type 'help' in the shell for available commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		info := env.Detect()
		locator := buildLocator(cfg, info)
		r, err := buildRetriever(cfg, locator)
		if err != nil {
			return err
		}

		shell, err := repl.New(repl.Config{
			Retriever: r,
			EnvInfo:   info,
			Locator:   locator,
		})
		if err != nil {
			return err
		}
		return shell.Run(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
