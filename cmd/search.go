package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/provider-verify/internal/model"
)

var searchFlags struct {
	country    string
	npi        string
	providerID string
	firstName  string
	lastName   string
	name       string
	city       string
	state      string
	postalCode string
	limit      int
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search a national registry for providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		country, err := parseCountry(searchFlags.country)
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

		svc := newService(st)
		results, err := svc.Search(ctx, caller, model.SearchParams{
			Country:    country,
			NPI:        searchFlags.npi,
			ProviderID: searchFlags.providerID,
			FirstName:  searchFlags.firstName,
			LastName:   searchFlags.lastName,
			Name:       searchFlags.name,
			City:       searchFlags.city,
			State:      searchFlags.state,
			PostalCode: searchFlags.postalCode,
			Limit:      searchFlags.limit,
		})
		if err != nil {
			return eris.Wrap(err, "search")
		}

		zap.L().Info("registry search complete",
			zap.String("country", string(country)),
			zap.Int("results", len(results)),
		)
		return printJSON(results)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.country, "country", "US", "registry country (US or IN)")
	searchCmd.Flags().StringVar(&searchFlags.npi, "npi", "", "NPI number (US, exact match)")
	searchCmd.Flags().StringVar(&searchFlags.providerID, "provider-id", "", "provider id (IN, exact match)")
	searchCmd.Flags().StringVar(&searchFlags.firstName, "first-name", "", "provider first name")
	searchCmd.Flags().StringVar(&searchFlags.lastName, "last-name", "", "provider last name")
	searchCmd.Flags().StringVar(&searchFlags.name, "name", "", "provider or organization name")
	searchCmd.Flags().StringVar(&searchFlags.city, "city", "", "city filter")
	searchCmd.Flags().StringVar(&searchFlags.state, "state", "", "state filter")
	searchCmd.Flags().StringVar(&searchFlags.postalCode, "postal-code", "", "postal code filter")
	searchCmd.Flags().IntVar(&searchFlags.limit, "limit", 0, "max results (default 10)")
	rootCmd.AddCommand(searchCmd)
}
