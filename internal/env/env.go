// Package env detects the execution environment and resolves the path to
// the external Retrieve executable. The tool is a Windows binary, so the
// only supported hosts are native Windows and WSL (where Windows binaries
// run through the compatibility layer and the install tree is visible
// under /mnt/c).
package env

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// EnvironmentInfo captures the host identity once at startup. Thread it
// through instead of re-probing; the answers cannot change mid-process.
type EnvironmentInfo struct {
	OS            string // runtime.GOOS value
	IsWSL         bool
	KernelVersion string // raw /proc/version contents on Linux, "" elsewhere
}

// Detect probes the current host. On Linux it reads /proc/version to tell
// WSL apart from a plain Linux box.
func Detect() EnvironmentInfo {
	kernel := ""
	if runtime.GOOS == "linux" {
		if b, err := os.ReadFile("/proc/version"); err == nil {
			kernel = string(b)
		}
	}
	return detectFrom(runtime.GOOS, kernel)
}

// detectFrom is the testable core of Detect.
func detectFrom(goos, kernelVersion string) EnvironmentInfo {
	lower := strings.ToLower(kernelVersion)
	return EnvironmentInfo{
		OS:            goos,
		IsWSL:         goos == "linux" && (strings.Contains(lower, "microsoft") || strings.Contains(lower, "wsl")),
		KernelVersion: kernelVersion,
	}
}

// WindowsCompatible reports whether this host can run the Windows
// retrieval binary at all.
func (e EnvironmentInfo) WindowsCompatible() bool {
	return e.OS == "windows" || e.IsWSL
}

// String returns a short label for logs and diagnostics.
func (e EnvironmentInfo) String() string {
	if e.IsWSL {
		return "wsl"
	}
	return e.OS
}

// NotFoundError is returned when no candidate location resolves to the
// retrieval executable.
type NotFoundError struct {
	// Searched lists every path that was probed, in order.
	Searched []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("retrieve executable not found (searched %d locations: %s)",
		len(e.Searched), strings.Join(e.Searched, ", "))
}
