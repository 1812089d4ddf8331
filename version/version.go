// Package version carries build identification, overridable at link time:
//
//	go build -ldflags "-X github.com/farcloser/mixprep/version.version=v1.2.3"
package version

//nolint:gochecknoglobals // set via ldflags
var (
	name    = "mixprep"
	version = "dev"
	commit  = "unknown"
)

// Name returns the binary name.
func Name() string {
	return name
}

// Version returns the build version.
func Version() string {
	return version
}

// Commit returns the git commit the binary was built from.
func Commit() string {
	return commit
}
