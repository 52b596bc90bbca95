// Package config holds the worker's static, process-lived configuration
// (spec.md §6): the coordinator host, transport security, thread count,
// and timing buffer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AppName names the application for env-var and default-path purposes,
// matching the teacher's config.AppName convention.
const AppName = "kitminer"

// DefaultDataDir is where a keyfile is looked for if --keyfile is omitted,
// matching the teacher's "$HOME/.<AppName>" convention (config.DefaultDataDir).
var DefaultDataDir = os.ExpandEnv("$HOME/." + AppName)

// KeystoreFileName is the default keyfile name under DefaultDataDir,
// mirroring the teacher's KeystoreDirName convention.
const KeystoreFileName = "key"

// DefaultKeyFile is the full default keyfile path used when --keyfile is
// omitted: DefaultDataDir/KeystoreFileName.
func DefaultKeyFile() string {
	return filepath.Join(DefaultDataDir, KeystoreFileName)
}

// DefaultThreads is the default maximum number of core-pinned search
// threads (spec.md §6).
const DefaultThreads = 4

// VersionInfo mirrors the teacher's build-metadata struct
// (cmd/root.go), populated by goreleaser-style ldflags.
type VersionInfo struct {
	BuildVersion string
	BuildCommit  string
	BuildDate    string
	GoVersion    string
}

// String renders VersionInfo for cobra's --version flag output.
func (v VersionInfo) String() string {
	version := v.BuildVersion
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("%s (commit %s, built %s, %s)", version, v.BuildCommit, v.BuildDate, v.GoVersion)
}

// MiningConfig is the worker's runtime configuration, built from CLI flags.
type MiningConfig struct {
	// Host is the coordinator host, without scheme.
	Host string
	// Unsecure selects http/ws instead of https/wss.
	Unsecure bool
	// Threads caps the number of core-pinned search threads.
	Threads uint32
	// Buffer is subtracted from the coordinator cutoff and added to the
	// post-submission cooldown.
	Buffer time.Duration
	// KeyFile is the path to the worker's signing key. Empty means use
	// DefaultKeyFile(), or generate an ephemeral key for the run if that
	// file does not exist.
	KeyFile string
}
