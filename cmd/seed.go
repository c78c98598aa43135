package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sitesurvey-cli/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed-characteristics",
	Short: "Upsert the characteristic taxonomy into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("seed"); err != nil {
			return err
		}

		tax, err := loadTaxonomy(cfg)
		if err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck

		cs := tax.Characteristics()
		n, err := st.UpsertCharacteristics(ctx, cs)
		if err != nil {
			return eris.Wrap(err, "seed characteristics")
		}
		zap.L().Info("characteristics seeded",
			zap.String("service", tax.Service()),
			zap.Int("definitions", len(cs)),
			zap.Int64("rows", n),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
