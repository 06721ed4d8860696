package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the sync history, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		caller, err := cliCaller()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		svc := newService(st)
		entries, err := svc.History(ctx, caller, historyLimit)
		if err != nil {
			return eris.Wrap(err, "history")
		}
		return printJSON(entries)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "max entries")
	rootCmd.AddCommand(historyCmd)
}
