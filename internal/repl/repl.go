// Package repl provides an interactive shell for issuing retrievals,
// aimed at control-room exploration of a shot before scripting a batch.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/lhdtools/lhdretrieve/internal/env"
	"github.com/lhdtools/lhdretrieve/internal/retrieve"
	"github.com/lhdtools/lhdretrieve/internal/types"
)

// Config holds the REPL's dependencies.
type Config struct {
	Retriever *retrieve.Retriever
	EnvInfo   env.EnvironmentInfo
	Locator   env.Locator
}

// REPL is the interactive shell.
type REPL struct {
	cfg Config
	rl  *readline.Instance
	ctx context.Context
	out io.Writer
}

// New creates a REPL instance.
func New(cfg Config) (*REPL, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	return &REPL{cfg: cfg, out: os.Stdout}, nil
}

// Run starts the REPL loop.
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("lhd> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer func() { _ = rl.Close() }()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			} else if err == io.EOF {
				fmt.Fprintln(r.out, "Goodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "LHD retrieval shell. Type 'help' for commands, 'exit' to leave.")
}

func (r *REPL) processInput(line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch strings.ToLower(cmd) {
	case "help", "?":
		r.printHelp()
		return nil
	case "env":
		return r.handleEnv()
	case "show":
		return r.handleShow(args)
	case "get":
		return r.handleGet(args)
	case "exit", "quit":
		fmt.Fprintln(r.out, "Goodbye!")
		return io.EOF
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.out, `Commands:
  get <diag> <shot> <subshot> <channel> [file.csv]
        Retrieve one channel; optionally save it as CSV.
  show <diag> <shot> <subshot> <channel>
        Print the tool command line this request would run.
  env   Show the detected environment and executable location.
  help  Show this help.
  exit  Leave the shell.
`)
}

func parseRequest(args []string) (types.RetrievalRequest, error) {
	if len(args) < 4 {
		return types.RetrievalRequest{}, fmt.Errorf("need <diag> <shot> <subshot> <channel>")
	}
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
	req := types.RetrievalRequest{
		DiagName: args[0],
		Shot:     shot,
		Subshot:  subshot,
		Channel:  channel,
		TimeAxis: true,
	}
	return req, req.Validate()
}

func (r *REPL) handleShow(args []string) error {
	req, err := parseRequest(args)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, req.CommandLine())
	return nil
}

func (r *REPL) handleEnv() error {
	if r.cfg.Locator == nil {
		return fmt.Errorf("no locator configured")
	}
	report := env.BuildReport(r.cfg.EnvInfo, r.cfg.Locator)
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(r.out, "host: %s (wsl=%v, windows-compatible=%v)\n",
		report.OS, report.IsWSL, report.WindowsCompatible)
	if report.ExecutableFound {
		fmt.Fprintf(r.out, "executable: %s %s\n", green("found"), report.ExecutablePath)
	} else {
		fmt.Fprintf(r.out, "executable: %s (searched %d locations)\n",
			yellow("not found"), len(report.SearchedCandidates))
	}
	return nil
}

func (r *REPL) handleGet(args []string) error {
	req, err := parseRequest(args)
	if err != nil {
		return err
	}

	data, err := r.cfg.Retriever.Retrieve(r.ctx, req)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "%s %s: %d samples", green("✓"), data.Description, data.Len())
	if len(data.Time) > 0 {
		fmt.Fprintf(r.out, ", time %g..%g s", data.Time[0], data.Time[len(data.Time)-1])
	}
	fmt.Fprintln(r.out)

	if len(args) >= 5 {
		if err := data.SaveCSV(args[4]); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "saved %s\n", args[4])
	}
	return nil
}
