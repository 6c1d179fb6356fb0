// Package version carries build metadata for the tracker binaries.
//
// Set at link time:
//
//	go build -ldflags "-X github.com/marvelcn015/crypto-tracker/internal/version.Version=1.0.0 \
//	                   -X github.com/marvelcn015/crypto-tracker/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/marvelcn015/crypto-tracker/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build metadata as reported by the status endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent is sent on REST requests and the push channel handshake.
func UserAgent() string {
	return "crypto-tracker/" + Version
}
