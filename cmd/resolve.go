package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resolveFlags struct {
	country string
	refresh bool
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <identifier>",
	Short: "Resolve a provider by identifier, refreshing stale records",
	Long:  "Returns the saved record for the identifier when it was synced within the cache window, otherwise refreshes it from the registry.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		country, err := parseCountry(resolveFlags.country)
		if err != nil {
			return err
		}
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
		result, err := svc.Resolve(ctx, caller, country, args[0], resolveFlags.refresh)
		if err != nil {
			return eris.Wrap(err, "resolve")
		}

		zap.L().Info("provider resolved",
			zap.String("identifier", args[0]),
			zap.Bool("from_cache", result.FromCache),
		)
		return printJSON(result)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFlags.country, "country", "US", "registry country (US or IN)")
	resolveCmd.Flags().BoolVar(&resolveFlags.refresh, "refresh", false, "refresh from the registry even if the saved record is fresh")
	rootCmd.AddCommand(resolveCmd)
}
