package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"tradeguard/journal"
)

// newJournalCmd dumps the lifecycle journal, either event by event or
// reduced to the open positions a recovery would re-adopt.
func newJournalCmd(opts *rootOptions) *cobra.Command {
	var openOnly bool

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Dump journal events or the open positions recovery would see",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			jnl, err := openJournal(cfg.Journal)
			if err != nil {
				return err
			}
			defer jnl.Close()

			events, err := jnl.Replay()
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			if openOnly {
				return enc.Encode(journal.OpenPositions(events))
			}
			return enc.Encode(events)
		},
	}

	cmd.Flags().BoolVar(&openOnly, "open", false, "Show only positions still open per the journal")
	return cmd
}
