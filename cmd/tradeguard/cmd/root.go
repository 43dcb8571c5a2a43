package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tradeguard/config"
)

type rootOptions struct {
	ConfigPath string
	LogLevel   string
}

// loadConfig reads the configured file, or defaults when none given.
// The --log-level flag overrides the file.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.LoadFromFile(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	return cfg, nil
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tradeguard",
		Short:         "Trailing stop engine with admission control and a safety gate",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level: debug|info|warn|error")

	cmd.AddCommand(
		newRunCmd(opts),
		newCheckCmd(opts),
		newLockCmd(opts),
		newUnlockCmd(opts),
		newPanicCmd(opts),
		newJournalCmd(opts),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("tradeguard (dev)")
		},
	})

	return cmd
}

func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}
