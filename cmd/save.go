package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/provider-verify/internal/model"
)

var saveFlags struct {
	country    string
	npi        string
	providerID string
	data       string
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Validate and save a registry provider record",
	Long:  "Validates the supplied data against the registry and, when a match exists, saves the registry record to the local directory. Records scoring below 80 are flagged for review. The API's save endpoint persists an already-held record without a registry call; this command is the lookup-and-save convenience on top of it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		country, err := parseCountry(saveFlags.country)
		if err != nil {
			return err
		}
		caller, err := cliCaller()
		if err != nil {
			return err
		}
		user, err := loadUserData(saveFlags.data)
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
		result, err := svc.ValidateAndSave(ctx, caller, model.SearchParams{
			Country:    country,
			NPI:        saveFlags.npi,
			ProviderID: saveFlags.providerID,
			Name:       user.Name,
			FirstName:  user.FirstName,
			LastName:   user.LastName,
		}, user)
		if err != nil {
			return eris.Wrap(err, "save")
		}

		if result.AuditWarning != "" {
			zap.L().Warn("sync history incomplete", zap.String("warning", result.AuditWarning))
		}
		if result.Record != nil {
			zap.L().Info("provider saved",
				zap.String("id", result.Record.ID),
				zap.String("identifier", result.Record.Identifier()),
				zap.Bool("needs_review", result.Record.NeedsReview),
			)
		} else {
			zap.L().Info("no registry match, nothing saved", zap.String("country", string(country)))
		}
		return printJSON(result)
	},
}

func init() {
	saveCmd.Flags().StringVar(&saveFlags.country, "country", "US", "registry country (US or IN)")
	saveCmd.Flags().StringVar(&saveFlags.npi, "npi", "", "NPI number (US)")
	saveCmd.Flags().StringVar(&saveFlags.providerID, "provider-id", "", "provider id (IN)")
	saveCmd.Flags().StringVar(&saveFlags.data, "data", "", "path to JSON provider data, or - for stdin (required)")
	_ = saveCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(saveCmd)
}
