// File: internal/version/version.go
// Brief: Build-time version metadata.

package version

import (
	"fmt"
	"runtime"
)

// These values are overridden at build time via -ldflags "-X ...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown" // RFC3339 UTC preferred
)

type Info struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
	Platform  string
}

func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("fsdeploy %s (commit %s, built %s, %s, %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}
