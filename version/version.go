package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

var (
	// These variables are set at build time using -ldflags.
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
	GoVersion = ""
)

// Info is the build information reported by the version endpoint and
// the startup summary.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime string    `json:"build_time"`
	GoVersion string    `json:"go_version"`
	BuildDate time.Time `json:"build_date"`
	IsRelease bool      `json:"is_release"`
}

// GetVersionInfo returns build information, preferring ldflags values
// and falling back to module build info.
func GetVersionInfo() *Info {
	info := &Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		IsRelease: Version != "dev",
	}

	if BuildTime != "" {
		if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
			info.BuildDate = t
		}
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		if info.GoVersion == "" {
			info.GoVersion = buildInfo.GoVersion
		}
		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = shortCommit(setting.Value)
				}
			case "vcs.time":
				if info.BuildTime == "" {
					if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
						info.BuildDate = t
						info.BuildTime = setting.Value
					}
				}
			}
		}
	}

	if info.BuildDate.IsZero() {
		info.BuildDate = time.Now().UTC()
		info.BuildTime = info.BuildDate.Format(time.RFC3339)
	}

	return info
}

// GetShortVersion returns "version" or "version-commit".
func GetShortVersion() string {
	info := GetVersionInfo()
	if info.GitCommit != "" {
		return info.Version + "-" + info.GitCommit
	}
	return info.Version
}

// GetFullVersion returns the short version with the build date appended.
func GetFullVersion() string {
	info := GetVersionInfo()
	return fmt.Sprintf("%s (built %s)", GetShortVersion(), info.BuildDate.Format(time.RFC3339))
}

func shortCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
