package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/provider-verify/internal/model"
	"github.com/sells-group/provider-verify/internal/store"
)

var providersFlags struct {
	country string
	limit   int
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List saved provider records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		caller, err := cliCaller()
		if err != nil {
			return err
		}

		var country model.Country
		if providersFlags.country != "" {
			country, err = parseCountry(providersFlags.country)
			if err != nil {
				return err
			}
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
		records, err := svc.ListProviders(ctx, caller, store.ProviderFilter{
			Country: country,
			Limit:   providersFlags.limit,
		})
		if err != nil {
			return eris.Wrap(err, "list providers")
		}
		return printJSON(records)
	},
}

func init() {
	providersCmd.Flags().StringVar(&providersFlags.country, "country", "", "filter by country (US or IN)")
	providersCmd.Flags().IntVar(&providersFlags.limit, "limit", 0, "max records")
	rootCmd.AddCommand(providersCmd)
}
