package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent retrieval attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.HistoryDB == "" {
			return fmt.Errorf("retrieval history is disabled (set history_db in the config file)")
		}

		store := openHistory(cfg)
		if store == nil {
			return fmt.Errorf("cannot open history database %s", cfg.HistoryDB)
		}
		defer func() { _ = store.Close() }()

		attempts, err := store.ListRecent(context.Background(), historyLimit)
		if err != nil {
			return err
		}
		if len(attempts) == 0 {
			fmt.Println("No retrievals recorded yet.")
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		for _, a := range attempts {
			status := green("ok")
			if !a.Success {
				status = red("failed")
			}
			fmt.Printf("%s  %-12s shot %d.%d ch %-4d %8d samples  %6s  %s\n",
				a.StartedAt.Local().Format("2006-01-02 15:04:05"),
				a.DiagName, a.Shot, a.Subshot, a.Channel, a.Samples,
				a.Duration.Round(time.Millisecond), status)
			if a.Error != "" {
				fmt.Printf("    %s\n", firstLine(a.Error))
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of attempts to show")
	rootCmd.AddCommand(historyCmd)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
