package listener

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"weighocr/internal/config"
	"weighocr/internal/connectors"
	"weighocr/internal/loader"
	"weighocr/internal/logger"
	"weighocr/internal/pipeline"
	"weighocr/internal/storage"
)

const SourceFile = "file"

// Watcher registers certificate files dropped into a directory as documents and parses them.
type Watcher struct {
	db         *storage.DB
	dir        string
	outDir     string
	autoExport bool
	processor  *pipeline.ProcessingService
}

func NewWatcher(db *storage.DB, cfg config.Config, parser *pipeline.Parser) *Watcher {
	return &Watcher{
		db:         db,
		dir:        cfg.InboxDir,
		outDir:     filepath.Join(cfg.OutputDir, "inbox"),
		autoExport: cfg.MailListenerAutoExport,
		processor:  pipeline.NewProcessingService(db, parser),
	}
}

// Run ingests the files already present, then every created or rewritten file until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	if _, err := w.Scan(); err != nil {
		logger.Warn("inbox scan: %v", err)
	}
	logger.Info("watching %s", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error: %v", err)
		}
	}
}

// Scan ingests every supported file currently in the directory.
func (w *Watcher) Scan() (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, err := w.Ingest(filepath.Join(w.dir, e.Name()))
		if err != nil {
			logger.Warn("ingest %s: %v", e.Name(), err)
			continue
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	ok, err := w.Ingest(event.Name)
	if err != nil {
		logger.Warn("ingest %s: %v", event.Name, err)
		return false
	}
	return ok
}

// Ingest registers path and processes it. Unchanged files that were already handled, hidden
// files, directories and unsupported extensions are skipped and report false.
func (w *Watcher) Ingest(path string) (bool, error) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || !loader.Supported(name) {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false, nil
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	hash := connectors.HashBytes(blob)

	existing, err := w.db.GetDocumentBySourceName(SourceFile, path)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.Hash == hash && existing.Status != pipeline.StatusFetched {
		return false, nil
	}

	doc, err := w.db.UpsertDocument(SourceFile, path, name, "", info.ModTime().UTC().Format("2006-01-02T15:04:05Z"), hash, path, pipeline.StatusFetched)
	if err != nil {
		return false, err
	}
	if _, err := w.processor.ProcessDocument(doc); err != nil {
		return false, err
	}
	logger.Info("processed %s", name)

	if w.autoExport {
		if _, err := ExportDocument(w.db, doc, w.outDir); err != nil {
			return true, err
		}
		if err := w.db.UpdateDocumentStatus(doc.ID, StatusExported); err != nil {
			return true, err
		}
	}
	return true, nil
}
