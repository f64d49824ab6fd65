package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/lhdtools/lhdretrieve/internal/env"
)

var (
	doctorProbe      bool
	doctorMinVersion string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the retrieval environment",
	Long: `Run health checks to diagnose common environment issues.

This command checks for:
- A Windows-compatible host (native Windows or WSL)
- The Windows C: drive being reachable (WSL)
- The Retrieve executable at its known install locations
- A writable working directory for temporary files
- A writable retrieval-history database

With --probe, the executable is also run once (help invocation) to
confirm the compatibility layer can actually start it, and its reported
version is compared against --min-version when one is given.

Exit codes:
  0 - All checks passed
  1 - One or more checks failed
  2 - Critical failures that prevent any retrieval`,
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running retrieval environment checks...\n\n")

		var failures, warnings, critical []string

		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("%s Configuration\n", cyan("→"))
			fmt.Printf("  %s %v\n", red("✗"), err)
			os.Exit(2)
		}

		info := env.Detect()
		locator := buildLocator(cfg, info)
		report := env.BuildReport(info, locator)

		// Check 1: host compatibility
		fmt.Printf("%s Host compatibility\n", cyan("→"))
		if report.WindowsCompatible {
			label := "native Windows"
			if report.IsWSL {
				label = "WSL"
			}
			fmt.Printf("  %s %s host can run the Windows tool\n", green("✓"), label)
		} else {
			critical = append(critical, "host cannot run Windows executables")
			fmt.Printf("  %s %s host cannot run the Windows tool\n", red("✗"), report.OS)
		}

		// Check 2: drive mount (WSL only)
		if report.IsWSL {
			fmt.Printf("%s Windows drive mount\n", cyan("→"))
			if report.CDriveAccessible {
				fmt.Printf("  %s /mnt/c is accessible\n", green("✓"))
			} else {
				critical = append(critical, "/mnt/c is not mounted")
				fmt.Printf("  %s /mnt/c is not mounted\n", red("✗"))
			}
		}

		// Check 3: executable discovery
		fmt.Printf("%s Retrieve executable\n", cyan("→"))
		if report.ExecutableFound {
			fmt.Printf("  %s Found: %s\n", green("✓"), report.ExecutablePath)
			if translated := locator.TranslatePath(report.ExecutablePath); translated != report.ExecutablePath {
				fmt.Printf("    Windows path: %s\n", translated)
			}
		} else {
			critical = append(critical, "Retrieve executable not found")
			fmt.Printf("  %s Not found; searched:\n", red("✗"))
			for _, p := range report.SearchedCandidates {
				fmt.Printf("      %s\n", p)
			}
		}

		// Check 4: working directory
		fmt.Printf("%s Working directory\n", cyan("→"))
		workDir := cfg.WorkingDir
		if workDir == "" && report.ExecutableFound {
			workDir = env.DefaultWorkingDir(report.ExecutablePath)
		}
		if workDir == "" {
			warnings = append(warnings, "no working directory resolvable without the executable")
			fmt.Printf("  %s Cannot resolve without the executable\n", yellow("⚠"))
		} else if err := checkWritable(workDir); err != nil {
			failures = append(failures, fmt.Sprintf("working directory not writable: %v", err))
			fmt.Printf("  %s %s is not writable\n", red("✗"), workDir)
		} else {
			fmt.Printf("  %s %s is writable\n", green("✓"), workDir)
		}

		// Check 5: history database
		fmt.Printf("%s Retrieval history\n", cyan("→"))
		if cfg.HistoryDB == "" {
			fmt.Printf("  %s Disabled\n", yellow("⚠"))
		} else if store := openHistory(cfg); store != nil {
			_ = store.Close()
			fmt.Printf("  %s %s\n", green("✓"), cfg.HistoryDB)
		} else {
			warnings = append(warnings, "history database unusable")
			fmt.Printf("  %s %s is unusable (retrievals still work)\n", yellow("⚠"), cfg.HistoryDB)
		}

		// Check 6: optional live probe
		if doctorProbe && report.ExecutableFound {
			fmt.Printf("%s Tool probe\n", cyan("→"))
			probeOut, err := probeTool(report.ExecutablePath)
			if err != nil {
				failures = append(failures, fmt.Sprintf("tool probe failed: %v", err))
				fmt.Printf("  %s Tool did not start: %v\n", red("✗"), err)
			} else {
				fmt.Printf("  %s Tool starts\n", green("✓"))
				if doctorMinVersion != "" {
					checkVersion(probeOut, &failures, &warnings)
				}
			}
		}

		fmt.Println()
		switch {
		case len(critical) > 0:
			fmt.Printf("%s Critical failures prevent any retrieval:\n", red("✗"))
			for _, c := range critical {
				fmt.Printf("  - %s\n", c)
			}
			os.Exit(2)
		case len(failures) > 0:
			fmt.Printf("%s %d check(s) failed\n", red("✗"), len(failures))
			os.Exit(1)
		case len(warnings) > 0:
			fmt.Printf("%s All checks passed with %d warning(s)\n", yellow("⚠"), len(warnings))
		default:
			fmt.Printf("%s All checks passed\n", green("✓"))
		}
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorProbe, "probe", false, "run the executable once to confirm it starts")
	doctorCmd.Flags().StringVar(&doctorMinVersion, "min-version", "", "minimum tool version to accept (with --probe)")
	rootCmd.AddCommand(doctorCmd)
}

// checkWritable verifies a directory accepts file creation.
func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".lhdretrieve-doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// probeTool runs the executable with its help flag. The tool exits
// non-zero on a help invocation, so only start failures and hangs count.
func probeTool(exePath string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, exePath, "-h")
	cmd.Dir = filepath.Dir(exePath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return string(out), nil
		}
		return "", err
	}
	return string(out), nil
}

var versionPattern = regexp.MustCompile(`[Vv]er(?:sion)?\.?\s*([0-9]+\.[0-9]+(?:\.[0-9]+)?)`)

// checkVersion compares the version the tool reports against the
// configured minimum.
func checkVersion(probeOutput string, failures, warnings *[]string) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	m := versionPattern.FindStringSubmatch(probeOutput)
	if m == nil {
		*warnings = append(*warnings, "tool did not report a version")
		fmt.Printf("  %s Tool did not report a version\n", yellow("⚠"))
		return
	}

	got := "v" + m[1]
	want := "v" + strings.TrimPrefix(doctorMinVersion, "v")
	if !semver.IsValid(got) || !semver.IsValid(want) {
		*warnings = append(*warnings, fmt.Sprintf("unparseable version %q", m[1]))
		fmt.Printf("  %s Unparseable version %q\n", yellow("⚠"), m[1])
		return
	}

	if semver.Compare(got, want) < 0 {
		*failures = append(*failures, fmt.Sprintf("tool version %s is older than required %s", got, want))
		fmt.Printf("  %s Version %s is older than required %s\n", red("✗"), got, want)
	} else {
		fmt.Printf("  %s Version %s meets minimum %s\n", green("✓"), got, want)
	}
}
