package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/trustrail/trustrail-core/pkg/export"
	"github.com/trustrail/trustrail-core/pkg/store"
)

var (
	exportStorePath string
	exportFormat    string
	exportSession   string
	exportMinScore  int
	exportMaxDebt   float64
	exportHost      string
	exportService   string
	exportOut       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export receipts for SIEM and audit tooling",
	Long: `Export stored receipts in a downstream-friendly format.

Formats: json (single document), jsonl (line-delimited), csv (summary
columns), kv (key=value syslog lines), siem (HEC-style JSON events).
Filters compose with AND semantics; receipts without telemetry are
excluded by score and truth-debt thresholds.`,
	Example: `  # All receipts of a session as CSV
  trustrail export --store receipts.jsonl --session s1 --format csv

  # High-trust receipts as SIEM events
  trustrail export --store receipts.jsonl --format siem --min-score 70 --host audit-01`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		receiptStore, err := store.NewJSONLStore(exportStorePath)
		if err != nil {
			return err
		}

		receipts, err := receiptStore.All()
		if err != nil {
			return err
		}

		filter := &export.Filter{SessionID: exportSession}
		if cmd.Flags().Changed("min-score") {
			filter.MinResonanceScore = export.MinScore(exportMinScore)
		}
		if cmd.Flags().Changed("max-truth-debt") {
			filter.MaxTruthDebt = export.MaxDebt(exportMaxDebt)
		}

		out, err := export.Export(receipts, export.Options{
			Format:  export.Format(exportFormat),
			Filter:  filter,
			Host:    exportHost,
			Service: exportService,
		})
		if err != nil {
			return err
		}

		if exportOut != "" {
			if err := os.WriteFile(exportOut, []byte(out), 0644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(os.Stderr, "✅ Exported to %s\n", exportOut)
			return nil
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportStorePath, "store", "", "JSONL receipt store path")
	exportCmd.Flags().StringVar(&exportFormat, "format", string(export.FormatJSON), "Output format: json, jsonl, csv, kv, or siem")
	exportCmd.Flags().StringVar(&exportSession, "session", "", "Keep only one session's receipts")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "Keep receipts with overall score >= this")
	exportCmd.Flags().Float64Var(&exportMaxDebt, "max-truth-debt", 0, "Keep receipts with truth debt <= this")
	exportCmd.Flags().StringVar(&exportHost, "host", "", "SIEM host tag")
	exportCmd.Flags().StringVar(&exportService, "service", "", "SIEM service tag")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Write the export to a file instead of stdout")
	_ = exportCmd.MarkFlagRequired("store")
}
