package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lhdtools/lhdretrieve/internal/env"
	"github.com/lhdtools/lhdretrieve/internal/types"
)

var (
	batchShots    string
	batchChannels string
	batchSubshot  int
	batchOutDir   string
	batchParallel int
	batchRate     float64
	batchVoltage  bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <diag>",
	Short: "Retrieve channel sets across multiple shots",
	Long: `Retrieve a list of channels for each shot in a range, saving one CSV
per channel. Shots run in parallel (bounded by --parallel); channels
within a shot run sequentially so their shared time axis is reused.

Distinct shots derive distinct temporary file names, so parallel shots
never collide; the per-shot channel loop keeps identical request tuples
from ever running concurrently. --rate throttles calls against the
facility's data server.`,
	Example: `  lhdretrieve batch Magnetics --shots 48000-48005 --channels 1,2,3
  lhdretrieve batch Bolometer --shots 139400,139402 --channels 1-32 --rate 2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		diag := args[0]

		// errgroup treats a limit of 0 as "admit nothing", which would
		// block every Go call forever.
		if batchParallel < 1 {
			return fmt.Errorf("--parallel must be at least 1, got %d", batchParallel)
		}

		shots, err := parseIntSet(batchShots)
		if err != nil {
			return fmt.Errorf("invalid --shots: %w", err)
		}
		channels, err := parseIntSet(batchChannels)
		if err != nil {
			return fmt.Errorf("invalid --channels: %w", err)
		}
		if len(shots) == 0 || len(channels) == 0 {
			return fmt.Errorf("--shots and --channels are required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		locator := buildLocator(cfg, env.Detect())
		r, err := buildRetriever(cfg, locator)
		if err != nil {
			return err
		}

		store := openHistory(cfg)
		if store != nil {
			defer func() { _ = store.Close() }()
		}

		if err := os.MkdirAll(batchOutDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		limiter := rate.NewLimiter(rate.Inf, 1)
		if batchRate > 0 {
			limiter = rate.NewLimiter(rate.Limit(batchRate), 1)
		}

		ctx := context.Background()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchParallel)

		var failed atomic.Int64
		for _, shot := range shots {
			shot := shot
			g.Go(func() error {
				for _, ch := range channels {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}

					req := types.RetrievalRequest{
						DiagName: diag, Shot: shot, Subshot: batchSubshot, Channel: ch, TimeAxis: true,
					}
					started := time.Now()
					data, err := r.Retrieve(gctx, req)
					recordAttempt(gctx, store, req, started, data, err)
					if err != nil {
						failed.Add(1)
						fmt.Printf("%s shot %d ch %d: %v\n", red("✗"), shot, ch, err)
						continue
					}

					out := filepath.Join(batchOutDir,
						fmt.Sprintf("%s_%d_%d_%d.csv", diag, shot, batchSubshot, ch))
					if batchVoltage {
						volts, verr := data.Voltage()
						if verr != nil {
							failed.Add(1)
							fmt.Printf("%s shot %d ch %d: %v\n", red("✗"), shot, ch, verr)
							continue
						}
						data = &types.Data{Samples: volts, Time: data.Time, Metadata: data.Metadata}
					}
					if err := data.SaveCSV(out); err != nil {
						failed.Add(1)
						fmt.Printf("%s shot %d ch %d: %v\n", red("✗"), shot, ch, err)
						continue
					}
					fmt.Printf("%s shot %d ch %d: %d samples -> %s\n",
						green("✓"), shot, ch, data.Len(), out)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
		if n := failed.Load(); n > 0 {
			return fmt.Errorf("%d retrieval(s) failed", n)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchShots, "shots", "", "shot numbers, e.g. 48000-48005 or 48000,48010")
	batchCmd.Flags().StringVar(&batchChannels, "channels", "", "channel numbers, e.g. 1-32 or 1,2,3")
	batchCmd.Flags().IntVar(&batchSubshot, "subshot", 1, "subshot number")
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", ".", "directory for CSV output")
	batchCmd.Flags().IntVar(&batchParallel, "parallel", 2, "maximum shots retrieved concurrently")
	batchCmd.Flags().Float64Var(&batchRate, "rate", 0, "maximum retrievals per second (0 = unlimited)")
	batchCmd.Flags().BoolVar(&batchVoltage, "voltage", false, "convert raw counts to voltage before saving")
	rootCmd.AddCommand(batchCmd)
}

// parseIntSet parses comma-separated values and inclusive ranges
// ("1,3,5-8") into a sorted, deduplicated list.
func parseIntSet(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("bad range start %q", lo)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("bad range end %q", hi)
			}
			if end < start {
				return nil, fmt.Errorf("range %q is reversed", part)
			}
			for v := start; v <= end; v++ {
				seen[v] = true
			}
			continue
		}

		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad value %q", part)
		}
		seen[v] = true
	}

	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}
