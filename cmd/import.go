package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-ingest/internal/tabular"
)

var (
	importFilePath string
	importTenant   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a vendor CSV or XLSX export into the lead store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, err := tabular.FormatFromName(importFilePath)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(importFilePath)
		if err != nil {
			return eris.Wrap(err, "read import file")
		}

		env, err := initIngest(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Coordinator.ImportBatch(ctx, importTenant, format, data)
		if err != nil {
			return eris.Wrap(err, "import file")
		}

		zap.L().Info("import complete",
			zap.String("file", importFilePath),
			zap.String("vendor", report.VendorName),
			zap.Int("imported", report.Imported),
			zap.Int("updated", report.Updated),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX file (required)")
	importCmd.Flags().StringVar(&importTenant, "tenant", "", "tenant id (default from ingest.default_tenant)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
