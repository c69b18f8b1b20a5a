package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"weighocr/internal"
	"weighocr/internal/config"
	"weighocr/internal/connectors"
	gmailconnector "weighocr/internal/connectors/gmail"
	imapconnector "weighocr/internal/connectors/imap"
	"weighocr/internal/logger"
	"weighocr/internal/pipeline"
	"weighocr/internal/storage"
)

const StatusExported = "exported"

type Service struct {
	db        *storage.DB
	cfg       config.Config
	parser    *pipeline.Parser
	connector connectors.MailConnector
}

func NewService(db *storage.DB, cfg config.Config, parser *pipeline.Parser) *Service {
	return &Service{db: db, cfg: cfg, parser: parser}
}

// WithConnector replaces the provider connector built from config.
func (s *Service) WithConnector(c connectors.MailConnector) *Service {
	s.connector = c
	return s
}

func (s *Service) Run(ctx context.Context) error {
	logger.Info("mail listener started provider=%s interval=%ds", s.provider(), s.cfg.MailListenerIntervalSec)
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			logger.Error("listener cycle error: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Records   int
	Exported  int
}

// RunCycle fetches new mail, processes pending documents of the provider and exports them.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := s.provider()
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return CycleResult{}, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, provider, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return CycleResult{}, err
	}

	processor := pipeline.NewProcessingService(s.db, s.parser)
	processedDocs, records, err := processor.ProcessPending(s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return CycleResult{}, err
	}

	res := CycleResult{Fetched: fetchResult.Fetched, Stored: fetchResult.Stored, Processed: processedDocs, Records: records}
	if s.cfg.MailListenerAutoExport {
		exported, err := ExportProcessed(s.db, provider, filepath.Join(s.cfg.OutputDir, "listener"))
		if err != nil {
			return res, err
		}
		res.Exported = exported
	}

	logger.Info("listener cycle done provider=%s fetched=%d stored=%d processed=%d records=%d exported=%d",
		provider, res.Fetched, res.Stored, res.Processed, res.Records, res.Exported)
	return res, nil
}

func (s *Service) provider() string {
	return strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
}

// ExportProcessed writes one JSON per record and one XLSX per processed document of source,
// then marks the document exported.
func ExportProcessed(db *storage.DB, source, outDir string) (int, error) {
	docs, err := db.ListDocumentsByStatus(pipeline.StatusProcessed, source, 200)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, doc := range docs {
		ok, err := ExportDocument(db, doc, outDir)
		if err != nil {
			return exported, err
		}
		if !ok {
			continue
		}
		if err := db.UpdateDocumentStatus(doc.ID, StatusExported); err != nil {
			return exported, err
		}
		exported++
	}
	return exported, nil
}

// ExportDocument reports false when the document has no records.
func ExportDocument(db *storage.DB, doc internal.DocumentRow, outDir string) (bool, error) {
	records, err := db.ListDocumentRecords(doc.ID)
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}

	base := fmt.Sprintf("%d_%s", doc.ID, SanitizeName(doc.Name))
	for _, rec := range records {
		name := fmt.Sprintf("%d_%s.json", rec.ID, SanitizeName(strings.TrimSuffix(rec.Attachment, filepath.Ext(rec.Attachment))))
		if err := pipeline.WriteRecordJSON(rec.Record, filepath.Join(outDir, base, name)); err != nil {
			return false, err
		}
	}

	rows, err := db.GetExportRows(doc.ID)
	if err != nil {
		return false, err
	}
	if err := pipeline.ExportRecordsToXLSX(rows, filepath.Join(outDir, base+".xlsx")); err != nil {
		return false, err
	}
	logger.Debug("exported document %d to %s", doc.ID, filepath.Join(outDir, base))
	return true, nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	if s.connector != nil {
		return s.connector, nil
	}
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

func SanitizeName(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "\"", "_")
	out := repl.Replace(input)
	if runes := []rune(out); len(runes) > 120 {
		out = string(runes[:120])
	}
	return out
}
