package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"weighocr/internal"
	"weighocr/internal/loader"
	"weighocr/internal/logger"
	"weighocr/internal/pipeline"
	"weighocr/internal/report"
)

var (
	parseInput   string
	parseOutput  string
	parseSummary bool

	batchDir string
	batchOut string
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse one OCR payload into a certificate record",
	Long: `Parses a JSON OCR payload (or a .txt, .pdf, .xlsx, .html or .eml input) and writes
the record as JSON. An email yields one record per supported attachment.`,
	RunE: runParse,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Parse every supported file of a directory",
	RunE:  runBatch,
}

func init() {
	parseCmd.Flags().StringVar(&parseInput, "input", "", "input file path")
	parseCmd.Flags().StringVar(&parseOutput, "output", "", "output JSON path (stdout when empty)")
	parseCmd.Flags().BoolVar(&parseSummary, "summary", false, "print a summary card to stderr")
	_ = parseCmd.MarkFlagRequired("input")

	batchCmd.Flags().StringVar(&batchDir, "dir", "", "input directory")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "output directory")
	_ = batchCmd.MarkFlagRequired("dir")
	_ = batchCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(parseCmd, batchCmd)
}

func runParse(cmd *cobra.Command, _ []string) error {
	sources, err := loader.LoadSourcesFile(parseInput)
	if err != nil {
		return err
	}
	results := parser.ParseSources(sources)

	var out any
	if len(results) == 1 {
		out = results[0].Record
	} else {
		items := make([]map[string]any, 0, len(results))
		for _, r := range results {
			items = append(items, map[string]any{"name": r.Name, "record": r.Record})
		}
		out = items
	}

	if parseOutput == "" {
		blob, err := pipeline.EncodeJSON(out)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(blob)
		if err != nil {
			return err
		}
	} else {
		if err := pipeline.WriteRecordJSON(out, parseOutput); err != nil {
			return err
		}
		cmd.Printf("wrote %d record(s) to %s\n", len(results), parseOutput)
	}

	if parseSummary {
		for _, r := range results {
			fmt.Fprintln(cmd.ErrOrStderr(), report.Summary(r.Name, r.Record, parser.Thresholds().LowConfidence))
		}
	}
	return nil
}

func runBatch(cmd *cobra.Command, _ []string) error {
	entries, err := os.ReadDir(batchDir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && loader.Supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	stems := batchStems(names)
	outNames := outputNames{}
	rows := []internal.RecordExportRow{}
	failed, low := 0, 0
	for _, name := range names {
		sources, err := loader.LoadSourcesFile(filepath.Join(batchDir, name))
		if err != nil {
			logger.Warn("%s: %v", name, err)
			failed++
			continue
		}
		for _, r := range parser.ParseSources(sources) {
			outName := stems[name]
			if len(sources) > 1 || r.Name != name {
				outName += "_" + strings.TrimSuffix(r.Name, filepath.Ext(r.Name))
			}
			outName = outNames.claim(outName) + ".json"
			if err := pipeline.WriteRecordJSON(r.Record, filepath.Join(batchOut, outName)); err != nil {
				return err
			}
			if parser.IsLowConfidence(r.Record) {
				low++
			}
			rows = append(rows, pipeline.RecordExportRowOf(name, r.Name, r.Record))
		}
	}

	summaryPath := filepath.Join(batchOut, "summary.xlsx")
	if err := pipeline.ExportRecordsToXLSX(rows, summaryPath); err != nil {
		return err
	}
	cmd.Printf("batch done files=%d records=%d lowConfidence=%d failed=%d summary=%s\n", len(names), len(rows), low, failed, summaryPath)
	return nil
}

// batchStems names each input's output after its stem; inputs sharing a stem (a.json, a.txt)
// keep their extension in it instead.
func batchStems(names []string) map[string]string {
	count := map[string]int{}
	for _, name := range names {
		count[strings.TrimSuffix(name, filepath.Ext(name))]++
	}
	stems := make(map[string]string, len(names))
	for _, name := range names {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		if count[stem] > 1 {
			stem += "_" + strings.TrimPrefix(ext, ".")
		}
		stems[name] = stem
	}
	return stems
}

type outputNames map[string]bool

// claim returns base, or base_2, base_3... when an earlier record already took it.
func (o outputNames) claim(base string) string {
	name := base
	for i := 2; o[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	o[name] = true
	return name
}
