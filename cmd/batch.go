package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sitesurvey-cli/internal/siteimport"
)

var (
	batchDir         string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Import every survey workbook in a directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sources, err := siteimport.ListWorkbooks(batchDir)
		if err != nil {
			return err
		}

		env, err := initImport(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := cfg.Batch.MaxConcurrentImports
		if batchConcurrency > 0 {
			concurrency = batchConcurrency
		}

		report, err := env.Service.ImportAll(ctx, sources, concurrency)
		if err != nil {
			return err
		}
		for _, item := range report.Items {
			if item.Err != nil {
				zap.L().Error("workbook failed", zap.String("source", item.Source), zap.Error(item.Err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d writes\n", item.Source, item.Report.QCode, item.Report.Writes())
		}
		if report.Failed > 0 {
			return eris.Errorf("batch: %d of %d workbooks failed", report.Failed, len(sources))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of .xlsx workbooks (required)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent imports (default batch.max_concurrent_imports)")
	_ = batchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(batchCmd)
}
