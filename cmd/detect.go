package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-ingest/internal/ingest"
	"github.com/sells-group/lead-ingest/internal/tabular"
)

var (
	detectFilePath string
	detectLeads    bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the vendor of an export and preview its folded leads without saving",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := tabular.FormatFromName(detectFilePath)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(detectFilePath)
		if err != nil {
			return eris.Wrap(err, "read detect file")
		}

		vendors, err := loadVendors()
		if err != nil {
			return err
		}

		tbl, err := tabular.Parse(cmd.Context(), format, data, tabular.DefaultOptions(cfg.Ingest.MaxRows))
		if err != nil {
			return eris.Wrap(err, "parse file")
		}

		// Prepare never touches the store.
		prep, err := ingest.New(cfg.Ingest, nil, vendors).Prepare(tbl)
		if err != nil {
			return err
		}
		if !detectLeads {
			prep.Leads = nil
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(prep)
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectFilePath, "file", "", "path to CSV or XLSX file (required)")
	detectCmd.Flags().BoolVar(&detectLeads, "leads", false, "include the folded leads in the output")
	_ = detectCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(detectCmd)
}
