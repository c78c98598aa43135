package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sitesurvey-cli/internal/sitesurvey"
)

var (
	templateOut  string
	templateBeds int
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write a blank site survey workbook",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := cfg.Validate("template"); err != nil {
			return err
		}
		tax, err := loadTaxonomy(cfg)
		if err != nil {
			return err
		}

		err = sitesurvey.WriteTemplate(templateOut, tax, sitesurvey.TemplateOptions{
			PremisesSheet: cfg.Survey.PremisesSheet,
			RoomsSheet:    cfg.Survey.RoomsSheet,
			Beds:          templateBeds,
		})
		if err != nil {
			return err
		}
		zap.L().Info("template written", zap.String("path", templateOut))
		return nil
	},
}

func init() {
	templateCmd.Flags().StringVar(&templateOut, "out", "site-survey.xlsx", "output path")
	templateCmd.Flags().IntVar(&templateBeds, "beds", 10, "bed columns in the rooms sheet")
	rootCmd.AddCommand(templateCmd)
}
