package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"weighocr/internal/config"
	"weighocr/internal/listener"
	"weighocr/internal/logger"
	"weighocr/internal/pipeline"
	"weighocr/internal/storage"
)

// mail-listener polls the configured mailbox and, with MAIL_LISTENER_WATCH_INBOX, also
// ingests files dropped into INBOX_DIR. Both stop on SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load()
	must(err)
	logger.SetVerbose(cfg.Verbose)

	vocab, err := cfg.Vocabulary()
	must(err)
	parser := pipeline.NewParser(vocab, cfg.Thresholds)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runners := []func(context.Context) error{listener.NewService(db, cfg, parser).Run}
	if cfg.MailListenerWatchInbox {
		runners = append(runners, listener.NewWatcher(db, cfg, parser).Run)
	}

	errs := make(chan error, len(runners))
	for _, run := range runners {
		go func(run func(context.Context) error) {
			err := run(ctx)
			if err != nil {
				// one failed loop takes the others down with it
				cancel()
			}
			errs <- err
		}(run)
	}

	var all []error
	for range runners {
		if err := <-errs; err != nil {
			all = append(all, err)
		}
	}
	must(errors.Join(all...))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
