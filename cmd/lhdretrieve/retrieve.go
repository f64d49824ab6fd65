package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lhdtools/lhdretrieve/internal/env"
	"github.com/lhdtools/lhdretrieve/internal/history"
	"github.com/lhdtools/lhdretrieve/internal/retrieve"
	"github.com/lhdtools/lhdretrieve/internal/types"
)

var (
	retrieveTimeAxis bool
	retrieveFrame    int
	retrieveDType    string
	retrieveOutput   string
	retrieveVoltage  bool
	retrieveRetries  int
	retrieveBackoff  time.Duration
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <diag> <shot> <subshot> <channel>",
	Short: "Retrieve one channel of one shot",
	Long: `Retrieve a single diagnostic channel and print a summary, optionally
saving the samples (or converted voltages) as CSV.

Retries are a caller-side policy: by default one attempt is made, and
--retries only re-runs the external tool after execution failures, with
exponential backoff.`,
	Example: `  lhdretrieve retrieve Magnetics 48000 1 1
  lhdretrieve retrieve Magnetics 48000 1 1 --output shot48000.csv --voltage
  lhdretrieve retrieve Bolometer 139400 1 32 --dtype float32 --retries 3`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromArgs(args)
		if err != nil {
			return err
		}
		req.TimeAxis = retrieveTimeAxis
		req.DType = types.DType(retrieveDType)
		if cmd.Flags().Changed("frame") {
			frame := retrieveFrame
			req.FrameNumber = &frame
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

		ctx := context.Background()
		started := time.Now()

		var data *types.Data
		if retrieveRetries > 1 {
			policy := retrieve.RetryPolicy{
				MaxAttempts:    retrieveRetries,
				InitialBackoff: retrieveBackoff,
				MaxBackoff:     30 * time.Second,
			}
			data, err = r.RetrieveWithRetry(ctx, req, policy)
		} else {
			data, err = r.Retrieve(ctx, req)
		}

		recordAttempt(ctx, store, req, started, data, err)
		if err != nil {
			return describeFailure(err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s\n", green("✓"), data.Description)
		fmt.Printf("  samples: %d\n", data.Len())
		if len(data.Time) > 0 {
			fmt.Printf("  time:    %g .. %g s\n", data.Time[0], data.Time[len(data.Time)-1])
		}
		if data.Units != "" {
			fmt.Printf("  units:   %s\n", data.Units)
		}
		fmt.Printf("  elapsed: %s\n", time.Since(started).Round(time.Millisecond))

		if retrieveOutput != "" {
			out := data
			if retrieveVoltage {
				volts, verr := data.Voltage()
				if verr != nil {
					return verr
				}
				out = &types.Data{Samples: volts, Time: data.Time, Metadata: data.Metadata}
			}
			if err := out.SaveCSV(retrieveOutput); err != nil {
				return err
			}
			fmt.Printf("  saved:   %s\n", retrieveOutput)
		}
		return nil
	},
}

func init() {
	retrieveCmd.Flags().BoolVarP(&retrieveTimeAxis, "time-axis", "T", true, "request a time axis from the tool")
	retrieveCmd.Flags().IntVarP(&retrieveFrame, "frame", "f", 0, "retrieve a specific frame number")
	retrieveCmd.Flags().StringVar(&retrieveDType, "dtype", "", "sample element type (int8|int16|int32|float32|float64, default int16)")
	retrieveCmd.Flags().StringVarP(&retrieveOutput, "output", "o", "", "save the result as CSV")
	retrieveCmd.Flags().BoolVar(&retrieveVoltage, "voltage", false, "convert raw counts to voltage before saving")
	retrieveCmd.Flags().IntVar(&retrieveRetries, "retries", 1, "total attempts for transient execution failures")
	retrieveCmd.Flags().DurationVar(&retrieveBackoff, "retry-backoff", time.Second, "initial backoff between attempts")
	rootCmd.AddCommand(retrieveCmd)
}

// requestFromArgs parses the four positional arguments shared by the
// retrieve and batch commands.
func requestFromArgs(args []string) (types.RetrievalRequest, error) {
	shot, err := strconv.Atoi(args[1])
	if err != nil {
		return types.RetrievalRequest{}, fmt.Errorf("shot must be an integer: %q", args[1])
	}
	subshot, err := strconv.Atoi(args[2])
	if err != nil {
		return types.RetrievalRequest{}, fmt.Errorf("subshot must be an integer: %q", args[2])
	}
	channel, err := strconv.Atoi(args[3])
	if err != nil {
		return types.RetrievalRequest{}, fmt.Errorf("channel must be an integer: %q", args[3])
	}
	return types.RetrievalRequest{
		DiagName: args[0],
		Shot:     shot,
		Subshot:  subshot,
		Channel:  channel,
	}, nil
}

// recordAttempt logs one retrieval to the history store, if enabled.
func recordAttempt(ctx context.Context, store *history.Store, req types.RetrievalRequest, started time.Time, data *types.Data, retErr error) {
	if store == nil {
		return
	}
	a := history.Attempt{
		DiagName:  req.DiagName,
		Shot:      req.Shot,
		Subshot:   req.Subshot,
		Channel:   req.Channel,
		StartedAt: started,
		Duration:  time.Since(started),
		Success:   retErr == nil,
	}
	if data != nil {
		a.Samples = data.Len()
	}
	if retErr != nil {
		a.Error = retErr.Error()
	}
	if err := store.Record(ctx, a); err != nil {
		fmt.Println(color.YellowString("Warning: failed to record history: %v", err))
	}
}

// describeFailure prefixes the error with its kind so operators can tell
// a facility-side failure from a local one at a glance.
func describeFailure(err error) error {
	switch {
	case retrieve.IsNotFound(err):
		return fmt.Errorf("executable not found: %w", err)
	case retrieve.IsExecution(err):
		return fmt.Errorf("tool execution failed: %w", err)
	case retrieve.IsParse(err):
		return fmt.Errorf("output files malformed: %w", err)
	case retrieve.IsCleanup(err):
		return fmt.Errorf("artifact cleanup failed: %w", err)
	default:
		return err
	}
}
