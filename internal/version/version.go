package version

import (
	"fmt"
	"runtime"
)

// Product is the name reported to vCenter and the write endpoint
const Product = "vsflux"

var (
	// Version is the current version of the application
	Version = "v0.1.0-dev"
	// GitCommit is the git commit that was compiled
	GitCommit = "unknown"
	// BuildDate is the date the binary was built
	BuildDate = "unknown"
	// GoVersion is the version of Go that was used to compile
	GoVersion = runtime.Version()
)

// Info represents version information
type Info struct {
	Product   string `json:"product"`
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// Get returns the version information
func Get() Info {
	return Info{
		Product:   Product,
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)",
		i.Product, i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}

// UserAgent returns the User-Agent used for outgoing requests
func UserAgent() string {
	return Product + "/" + Version
}
