// Copyright © 2019 NAME HERE <EMAIL ADDRESS>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	"github.com/make-os/kitminer/config"
	"github.com/make-os/kitminer/pkgs/logger"
	"github.com/spf13/cobra"
)

var (
	// BuildVersion is the build version set by goreleaser.
	BuildVersion = ""

	// BuildCommit is the git hash of the build, set by goreleaser.
	BuildCommit = ""

	// BuildDate is the date the build was created, set by goreleaser.
	BuildDate = ""

	// GoVersion is the version of go used to build the client.
	GoVersion = "go1.21"
)

var log logger.Logger = logger.NewLogrus()

// versionInfo carries the goreleaser-injected build vars into a
// config.VersionInfo, matching the teacher's cfg.VersionInfo assignment in
// cmd/root.go's PersistentPreRun.
var versionInfo = config.VersionInfo{
	BuildVersion: BuildVersion,
	BuildCommit:  BuildCommit,
	BuildDate:    BuildDate,
	GoVersion:    GoVersion,
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "kitminer",
	Short:   "A client-side proof-of-work mining worker",
	Version: versionInfo.String(),
	Long: `kitminer connects to a coordinator over a bidirectional message
channel, mines nonces across pinned CPU cores, and submits the
highest-difficulty result found before the coordinator's deadline.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(MineCmd)
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}
