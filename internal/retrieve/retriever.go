// Package retrieve orchestrates one measurement retrieval end to end:
// locate the external tool, invoke it, parse what it produced, and
// remove every temporary file before returning, on every exit path.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/lhdtools/lhdretrieve/internal/artifact"
	"github.com/lhdtools/lhdretrieve/internal/env"
	"github.com/lhdtools/lhdretrieve/internal/invoke"
	"github.com/lhdtools/lhdretrieve/internal/parse"
	"github.com/lhdtools/lhdretrieve/internal/types"
)

// Options configures a Retriever.
type Options struct {
	// Locator resolves the external executable; required.
	Locator env.Locator
	// WorkDir overrides where temporary artifacts are written. Empty
	// means the executable's own directory, matching how the tool is
	// normally run.
	WorkDir string
	// Timeout bounds one tool invocation; zero means the invoker default.
	Timeout time.Duration
	// Logger receives debug/warn output; nil means slog.Default().
	Logger *slog.Logger
}

// Retriever runs retrieval calls. It holds no per-call state; calls with
// distinct request tuples are safe to issue concurrently. Two concurrent
// calls with identical (diagnostic, shot, subshot, channel) would collide
// on temporary file names — serialize on that key.
type Retriever struct {
	locator env.Locator
	workDir string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Retriever.
func New(opts Options) (*Retriever, error) {
	if opts.Locator == nil {
		return nil, fmt.Errorf("locator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		locator: opts.Locator,
		workDir: opts.WorkDir,
		timeout: opts.Timeout,
		logger:  logger,
	}, nil
}

// Retrieve performs one retrieval call. The sequence is strict: the
// executable is located first (a miss aborts with *env.NotFoundError and
// spawns nothing), the tool runs, the artifact set is parsed, and
// cleanup always runs once an invocation was attempted. A cleanup
// failure is combined with any prior execution or parse error rather
// than replacing it.
func (r *Retriever) Retrieve(ctx context.Context, req types.RetrievalRequest) (*types.Data, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval request: %w", err)
	}

	exePath, err := r.locator.LocateExecutable()
	if err != nil {
		return nil, err
	}

	workDir := r.workDir
	if workDir == "" {
		workDir = env.DefaultWorkingDir(exePath)
	}

	set := artifact.NewSet(workDir, req)
	iv := &invoke.Invoker{
		ExePath: exePath,
		WorkDir: workDir,
		Timeout: r.timeout,
		Logger:  r.logger,
	}

	data, retErr := r.invokeAndParse(ctx, iv, req, set)

	// The cleanup guard: runs whether invocation or parsing failed, and
	// its own failure is reported alongside, never instead of, the
	// earlier one.
	if cerr := set.Cleanup(); cerr != nil {
		retErr = multierr.Append(retErr, cerr)
	}

	if retErr != nil {
		return nil, retErr
	}
	return data, nil
}

func (r *Retriever) invokeAndParse(ctx context.Context, iv *invoke.Invoker, req types.RetrievalRequest, set artifact.Set) (*types.Data, error) {
	if err := iv.Run(ctx, req, set); err != nil {
		return nil, err
	}

	samples, timeAxis, metadata, err := parse.ArtifactSet(set, req, r.logger)
	if err != nil {
		return nil, err
	}

	metadata["DiagName"] = req.DiagName
	metadata["Shot"] = strconv.Itoa(req.Shot)
	metadata["Subshot"] = strconv.Itoa(req.Subshot)
	metadata["Channel"] = strconv.Itoa(req.Channel)

	return &types.Data{
		Samples:     samples,
		Time:        timeAxis,
		Metadata:    metadata,
		Units:       metadata["Unit"],
		Description: req.Description(),
	}, nil
}

// RetrieveChannels retrieves several channels of one shot sequentially,
// returning results in request order. The time axis and shot-level
// metadata of the first successful channel are shared across results;
// the artifact sets stay fully independent. A failed channel does not
// stop the remaining ones; all per-channel errors are combined into the
// returned error.
func (r *Retriever) RetrieveChannels(ctx context.Context, diagName string, shot, subshot int, channels []int, timeAxis bool) ([]*types.Data, error) {
	var results []*types.Data
	var retErr error

	var sharedTime []float64
	sharedMeta := map[string]string{}

	for _, ch := range channels {
		req := types.RetrievalRequest{
			DiagName: diagName,
			Shot:     shot,
			Subshot:  subshot,
			Channel:  ch,
			TimeAxis: timeAxis,
		}

		data, err := r.Retrieve(ctx, req)
		if err != nil {
			r.logger.Warn("channel retrieval failed", "channel", ch, "err", err)
			retErr = multierr.Append(retErr, fmt.Errorf("channel %d: %w", ch, err))
			continue
		}

		if sharedTime == nil && len(data.Time) > 0 {
			sharedTime = data.Time
			for k, v := range data.Metadata {
				if k == "Channel" {
					continue
				}
				sharedMeta[k] = v
			}
		} else if sharedTime != nil && len(sharedTime) == len(data.Samples) {
			// All channels of one shot share a clock; reuse the first
			// channel's axis instead of keeping per-channel copies.
			data.Time = sharedTime
			for k, v := range sharedMeta {
				if _, exists := data.Metadata[k]; !exists {
					data.Metadata[k] = v
				}
			}
		}

		results = append(results, data)
	}

	return results, retErr
}
