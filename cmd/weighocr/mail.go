package main

import (
	"strings"

	"github.com/spf13/cobra"

	"weighocr/internal/connectors"
	"weighocr/internal/listener"
	"weighocr/internal/pipeline"
)

var (
	mailProvider   string
	mailSource     string
	mailLabel      string
	mailMax        int
	mailDocumentID int
	mailBatch      int

	watchDir string
)

var mailFetchCmd = &cobra.Command{
	Use:   "mail:fetch",
	Short: "Fetch certificate emails and store them as documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		conn, err := makeConnector(mailProvider)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		fetch := connectors.NewFetchService(db, cfg.RawMailDir, strings.ToLower(strings.TrimSpace(mailProvider)), conn)
		result, err := fetch.FetchAndStore(ctx, mailLabel, mailMax)
		if err != nil {
			return err
		}
		cmd.Printf("mail fetch done provider=%s fetched=%d stored=%d unchanged=%d failed=%d\n", mailProvider, result.Fetched, result.Stored, result.Unchanged, result.Failed)
		return nil
	},
}

var mailProcessCmd = &cobra.Command{
	Use:   "mail:process",
	Short: "Parse fetched documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		processor := pipeline.NewProcessingService(db, parser)
		if mailDocumentID != 0 {
			res, err := processor.ProcessByID(mailDocumentID)
			if err != nil {
				return err
			}
			cmd.Printf("processed document id=%d records=%d warnings=%d lowConfidence=%d runs=%d\n", res.DocumentID, res.Records, res.Warnings, res.LowConfidence, res.Runs)
			return nil
		}
		docs, records, err := processor.ProcessPending(mailBatch, mailSource)
		if err != nil {
			return err
		}
		cmd.Printf("processed pending documents=%d records=%d\n", docs, records)
		return nil
	},
}

var mailListenCmd = &cobra.Command{
	Use:   "mail:listen",
	Short: "Fetch, parse and export mail on an interval",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signalContext()
		defer cancel()
		return listener.NewService(db, cfg, parser).Run(ctx)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Parse certificate files dropped into the inbox directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if watchDir != "" {
			cfg.InboxDir = watchDir
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signalContext()
		defer cancel()
		return listener.NewWatcher(db, cfg, parser).Run(ctx)
	},
}

func init() {
	mailFetchCmd.Flags().StringVar(&mailProvider, "provider", "gmail", "gmail|imap")
	mailFetchCmd.Flags().StringVar(&mailLabel, "label", "INBOX", "mailbox/label")
	mailFetchCmd.Flags().IntVar(&mailMax, "max", 50, "max messages")

	mailProcessCmd.Flags().StringVar(&mailSource, "provider", "", "only documents of this source (gmail|imap|file|api)")
	mailProcessCmd.Flags().IntVar(&mailDocumentID, "documentId", 0, "process one document")
	mailProcessCmd.Flags().IntVar(&mailBatch, "batch", 20, "batch size")

	watchCmd.Flags().StringVar(&watchDir, "dir", "", "directory to watch (default INBOX_DIR)")

	rootCmd.AddCommand(mailFetchCmd, mailProcessCmd, mailListenCmd, watchCmd)
}
