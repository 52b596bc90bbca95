package cmd

import (
	"context"
	"os"
	"time"

	"github.com/make-os/kitminer/config"
	"github.com/make-os/kitminer/internal/hashfamily"
	"github.com/make-os/kitminer/internal/identity"
	"github.com/make-os/kitminer/internal/session"
	"github.com/make-os/kitminer/internal/supervisor"
	"github.com/make-os/kitminer/internal/ui"
	"github.com/make-os/kitminer/internal/wire"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// MineCmd connects to a coordinator and mines until interrupted.
var MineCmd = &cobra.Command{
	Use:   "mine [host]",
	Short: "Connect to a coordinator and mine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threads, _ := cmd.Flags().GetUint32("threads")
		bufferSecs, _ := cmd.Flags().GetUint32("buffer")
		unsecure, _ := cmd.Flags().GetBool("unsecure")
		keyFile, _ := cmd.Flags().GetString("keyfile")
		debug, _ := cmd.Flags().GetBool("debug")

		if debug {
			log.SetToDebug()
		}

		cfg := config.MiningConfig{
			Host:     args[0],
			Unsecure: unsecure,
			Threads:  threads,
			Buffer:   time.Duration(bufferSecs) * time.Second,
			KeyFile:  keyFile,
		}

		signer, err := loadSigner(cfg.KeyFile)
		if err != nil {
			return errors.Wrap(err, "load signing key")
		}
		log.Info("worker identity", "pubkey", signer.PublicKey().String())

		binder := wire.NewBinder(signer)
		family := hashfamily.NewBlake2bFamily()
		reporter := ui.NewSpinner(os.Stdout)

		sessCfg := session.Config{
			Host:     cfg.Host,
			Unsecure: cfg.Unsecure,
			Threads:  cfg.Threads,
			Buffer:   cfg.Buffer,
		}
		sess := session.New(sessCfg, binder, family, reporter, log.Module("session"))

		sup := supervisor.New(sess, log.Module("supervisor"))
		sup.ListenForInterrupt()

		if err := sup.Run(context.Background()); err != nil {
			return errors.Wrap(err, "mining supervisor exited")
		}
		return nil
	},
}

// loadSigner reads a 64-byte Ed25519 key from path. When path is empty, it
// falls back to config.DefaultKeyFile() (the teacher's DefaultDataDir-rooted
// keystore convention); if that file doesn't exist either, it generates an
// ephemeral key for the run (spec.md §6: the signing key is an input from
// the outer program, not specified by this module).
func loadSigner(path string) (identity.Signer, error) {
	if path == "" {
		path = config.DefaultKeyFile()
		if _, err := os.Stat(path); err != nil {
			log.Warn("no --keyfile given and none found in the default keystore path, generating an ephemeral signing key", "path", path)
			return identity.NewEd25519Signer()
		}
		log.Info("loading signing key from default keystore path", "path", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read keyfile %s", path)
	}
	return identity.LoadEd25519Signer(raw)
}

func init() {
	MineCmd.Flags().Uint32("threads", config.DefaultThreads, "Maximum number of core-pinned search threads to activate")
	MineCmd.Flags().Uint32("buffer", 0, "Seconds subtracted from the coordinator cutoff and added to the post-submission cooldown")
	MineCmd.Flags().Bool("unsecure", false, "Use unsecured http/ws instead of https/wss")
	MineCmd.Flags().String("keyfile", "", "Path to a 64-byte Ed25519 signing key (if omitted, uses the default key file, or generates an ephemeral key when that is missing)")
}
