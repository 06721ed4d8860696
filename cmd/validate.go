package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/provider-verify/internal/model"
)

var validateFlags struct {
	country    string
	npi        string
	providerID string
	data       string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Score caller-supplied provider data against the registry record",
	Long:  "Looks the provider up in the national registry and scores each supplied field against the registry value. The comparison is recorded in the sync history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		country, err := parseCountry(validateFlags.country)
		if err != nil {
			return err
		}
		caller, err := cliCaller()
		if err != nil {
			return err
		}
		user, err := loadUserData(validateFlags.data)
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
		result, err := svc.Validate(ctx, caller, model.SearchParams{
			Country:    country,
			NPI:        validateFlags.npi,
			ProviderID: validateFlags.providerID,
			Name:       user.Name,
			FirstName:  user.FirstName,
			LastName:   user.LastName,
		}, user)
		if err != nil {
			return eris.Wrap(err, "validate")
		}

		if result.Found {
			zap.L().Info("validation complete",
				zap.String("country", string(country)),
				zap.Int("correctness_score", result.CorrectnessScore),
			)
		} else {
			zap.L().Info("no registry match", zap.String("country", string(country)))
		}
		return printJSON(result)
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateFlags.country, "country", "US", "registry country (US or IN)")
	validateCmd.Flags().StringVar(&validateFlags.npi, "npi", "", "NPI number (US)")
	validateCmd.Flags().StringVar(&validateFlags.providerID, "provider-id", "", "provider id (IN)")
	validateCmd.Flags().StringVar(&validateFlags.data, "data", "", "path to JSON provider data, or - for stdin (required)")
	_ = validateCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(validateCmd)
}
