package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"weighocr/internal/pipeline"
)

var (
	exportDocumentID int
	exportOut        string

	recordsLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export:xlsx",
	Short: "Export stored records to XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rows, err := db.GetExportRows(exportDocumentID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("no export rows for documentId=%d", exportDocumentID)
		}
		if err := pipeline.ExportRecordsToXLSX(rows, exportOut); err != nil {
			return err
		}
		cmd.Printf("exported %d rows to %s\n", len(rows), exportOut)
		return nil
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List the most recent stored records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		recs, err := db.ListRecords(recordsLimit)
		if err != nil {
			return err
		}
		for _, r := range recs {
			cmd.Printf("%d\tdoc=%d\t%s\t%s\tnet=%s\tconf=%.2f\t%s\n",
				r.ID, r.DocumentID, r.Attachment, orDash(r.Record.VehicleNo), netOf(r.Record.NetWeightKg), r.Record.ParseConfidence, pipeline.WarningCodes(r.Record))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportDocumentID, "documentId", 0, "document id (0 exports every record)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output xlsx path")
	_ = exportCmd.MarkFlagRequired("out")

	recordsCmd.Flags().IntVar(&recordsLimit, "limit", 20, "number of records")

	rootCmd.AddCommand(exportCmd, recordsCmd)
}

func orDash(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func netOf(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}
