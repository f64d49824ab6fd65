package env

import (
	"errors"
	"os"
)

// Report summarizes the host environment for diagnostics output.
type Report struct {
	OS                 string
	IsWSL              bool
	WindowsCompatible  bool
	CDriveAccessible   bool
	ExecutablePath     string
	ExecutableFound    bool
	SearchedCandidates []string
}

// BuildReport probes the environment once and collects everything the
// doctor command needs to print.
func BuildReport(info EnvironmentInfo, locator Locator) Report {
	r := Report{
		OS:                info.OS,
		IsWSL:             info.IsWSL,
		WindowsCompatible: info.WindowsCompatible(),
	}

	if info.IsWSL {
		r.CDriveAccessible = dirExists("/mnt/c")
	} else if info.OS == "windows" {
		r.CDriveAccessible = true
	}

	path, err := locator.LocateExecutable()
	if err == nil {
		r.ExecutablePath = path
		r.ExecutableFound = true
		return r
	}

	var nf *NotFoundError
	if errors.As(err, &nf) {
		r.SearchedCandidates = nf.Searched
	}
	return r
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
