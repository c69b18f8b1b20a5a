package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"weighocr/internal/config"
	"weighocr/internal/connectors"
	gmailconnector "weighocr/internal/connectors/gmail"
	imapconnector "weighocr/internal/connectors/imap"
	"weighocr/internal/logger"
	"weighocr/internal/pipeline"
	"weighocr/internal/storage"
)

var version = "dev"

var (
	verbose bool

	cfg    config.Config
	parser *pipeline.Parser
)

var rootCmd = &cobra.Command{
	Use:           "weighocr",
	Short:         "Extract and validate weighbridge certificate fields from OCR output",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logger.SetVerbose(verbose || cfg.Verbose)
		logger.SetOutput(cmd.ErrOrStderr())

		vocab, err := cfg.Vocabulary()
		if err != nil {
			return err
		}
		parser = pipeline.NewParser(vocab, cfg.Thresholds)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func openDB() (*storage.DB, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	return db, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func makeConnector(provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
