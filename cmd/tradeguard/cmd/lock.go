package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tradeguard/pkg/logger"
	"tradeguard/safemode"
)

func newLockCmd(opts *rootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Engage the hard-lock sentinel (blocks all real orders)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			lock := safemode.NewHardLock(cfg.SafeMode.LockFile)
			if err := lock.Engage(reason); err != nil {
				return err
			}
			fmt.Printf("hard lock engaged: %s\n", lock.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual", "Reason recorded in the sentinel (informational)")
	return cmd
}

func newUnlockCmd(opts *rootOptions) *cobra.Command {
	var clearPanic bool

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Release the hard-lock sentinel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			lock := safemode.NewHardLock(cfg.SafeMode.LockFile)
			if err := lock.Release(); err != nil {
				return err
			}
			if clearPanic {
				p := safemode.NewPanic(cfg.SafeMode.PanicFile, lock, nil)
				if err := p.Reset(); err != nil {
					return err
				}
			}
			fmt.Println("hard lock released")
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearPanic, "clear-panic", false, "Also remove the panic flag")
	return cmd
}

func newPanicCmd(opts *rootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "panic",
		Short: "Activate panic: hard lock plus a flag that keeps autoloops from resuming",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Logging)
			if err != nil {
				return err
			}
			lock := safemode.NewHardLock(cfg.SafeMode.LockFile)
			p := safemode.NewPanic(cfg.SafeMode.PanicFile, lock, logger.Component(log, "panic"))
			p.Activate(reason)
			fmt.Println("panic activated")
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "panic", "Reason recorded in the sentinel files")
	return cmd
}
