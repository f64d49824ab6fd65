package env

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExeName is the retrieval tool's binary name as installed by the
// facility's client package.
const ExeName = "Retrieve.exe"

// Default install locations on a native Windows host.
var windowsCandidates = []string{
	`C:\LABCOM\Retrieve\bin\Retrieve.exe`,
	`C:\LHD\Retrieve\Retrieve.exe`,
	`C:\Program Files\LHD\Retrieve\Retrieve.exe`,
	`C:\Program Files (x86)\LHD\Retrieve\Retrieve.exe`,
	`.\Retrieve.exe`,
	`.\bin\Retrieve.exe`,
}

// The same install tree as seen through the WSL drive mount.
var wslCandidates = []string{
	"/mnt/c/LABCOM/Retrieve/bin/Retrieve.exe",
	"/mnt/c/LHD/Retrieve/Retrieve.exe",
	"/mnt/c/Program Files/LHD/Retrieve/Retrieve.exe",
	"/mnt/c/Program Files (x86)/LHD/Retrieve/Retrieve.exe",
}

// Locator resolves the retrieval executable for one execution context.
// The two variants (native Windows, WSL) are selected once at startup via
// NewLocator; nothing else in the module branches on the host identity.
type Locator interface {
	// LocateExecutable returns the path to the retrieval executable, or a
	// *NotFoundError naming every probed location. Probing is read-only;
	// no subprocess is spawned.
	LocateExecutable() (string, error)
	// TranslatePath converts a host path into the form the external tool
	// understands (identity on Windows, /mnt/c -> C:\ under WSL).
	TranslatePath(path string) string
}

// Option adjusts locator construction.
type Option func(*locatorConfig)

type locatorConfig struct {
	explicitPath string
	extraPaths   []string
	lookPath     func(string) (string, error)
}

// WithExplicitPath pins the executable to a known location. The path is
// still verified to exist.
func WithExplicitPath(path string) Option {
	return func(c *locatorConfig) { c.explicitPath = path }
}

// WithExtraCandidates prepends additional probe locations, e.g. from the
// config file.
func WithExtraCandidates(paths []string) Option {
	return func(c *locatorConfig) { c.extraPaths = append(c.extraPaths, paths...) }
}

// NewLocator returns the locator variant for the detected environment.
// Hosts that cannot run the Windows binary get a locator whose probes all
// fail, so the caller sees a uniform NotFoundError instead of a separate
// platform error path.
func NewLocator(info EnvironmentInfo, opts ...Option) Locator {
	cfg := locatorConfig{lookPath: exec.LookPath}
	for _, opt := range opts {
		opt(&cfg)
	}

	if info.OS == "windows" {
		return &windowsLocator{cfg: cfg}
	}
	return &wslLocator{cfg: cfg, compatible: info.IsWSL}
}

// probe returns the first candidate that exists as a regular file.
func probe(candidates []string) (string, bool) {
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

type windowsLocator struct {
	cfg locatorConfig
}

func (l *windowsLocator) LocateExecutable() (string, error) {
	candidates := l.candidates()
	if p, ok := probe(candidates); ok {
		return p, nil
	}
	// Fall back to PATH lookup, the way the tool is used from a shell.
	if p, err := l.cfg.lookPath(ExeName); err == nil {
		return p, nil
	}
	return "", &NotFoundError{Searched: append(candidates, "$PATH")}
}

func (l *windowsLocator) candidates() []string {
	var out []string
	if l.cfg.explicitPath != "" {
		out = append(out, l.cfg.explicitPath)
	}
	out = append(out, l.cfg.extraPaths...)
	return append(out, windowsCandidates...)
}

func (l *windowsLocator) TranslatePath(path string) string { return path }

type wslLocator struct {
	cfg        locatorConfig
	compatible bool
}

func (l *wslLocator) LocateExecutable() (string, error) {
	// An explicitly configured path bypasses the host compatibility gate:
	// whoever set it knows how the binary will run.
	if l.cfg.explicitPath != "" {
		if p, ok := probe([]string{l.cfg.explicitPath}); ok {
			return p, nil
		}
	}

	candidates := l.candidates()
	if !l.compatible {
		// Plain Linux: the Windows binary cannot run here, so the mount
		// candidates are not even probed and the error carries the full
		// would-be search list.
		return "", &NotFoundError{Searched: candidates}
	}
	if p, ok := probe(candidates); ok {
		return p, nil
	}
	return "", &NotFoundError{Searched: candidates}
}

func (l *wslLocator) candidates() []string {
	var out []string
	if l.cfg.explicitPath != "" {
		out = append(out, l.cfg.explicitPath)
	}
	out = append(out, l.cfg.extraPaths...)
	return append(out, wslCandidates...)
}

// TranslatePath converts a WSL mount path (/mnt/c/dir/file) to the native
// Windows form (C:\dir\file). Paths outside the drive mounts are returned
// unchanged.
func (l *wslLocator) TranslatePath(path string) string {
	if !strings.HasPrefix(path, "/mnt/") {
		return path
	}
	parts := strings.Split(path, "/")
	// ["", "mnt", "c", ...]
	if len(parts) < 3 || len(parts[2]) != 1 {
		return path
	}
	drive := strings.ToUpper(parts[2]) + ":"
	if len(parts) == 3 {
		return drive + `\`
	}
	return drive + `\` + strings.Join(parts[3:], `\`)
}

// DefaultWorkingDir returns the directory temporary artifacts are written
// to for a resolved executable: the executable's own directory, matching
// how the tool is normally run at the facility.
func DefaultWorkingDir(exePath string) string {
	abs, err := filepath.Abs(exePath)
	if err != nil {
		return filepath.Dir(exePath)
	}
	return filepath.Dir(abs)
}
