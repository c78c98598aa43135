package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	importFile  string
	importQCode string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import one site survey workbook",
	Long:  "Imports a workbook from a local path, an s3://bucket/key URI or an http(s) URL. With --q-code only the rooms sheet is imported, against that existing premises.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initImport(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Service.Import(ctx, importFile, importQCode)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "workbook path, s3:// URI or URL (required)")
	importCmd.Flags().StringVar(&importQCode, "q-code", "", "import rooms only, for this existing premises")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
