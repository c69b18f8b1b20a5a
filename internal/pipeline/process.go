package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"weighocr/internal"
	"weighocr/internal/loader"
	"weighocr/internal/logger"
	"weighocr/internal/storage"
)

const (
	StatusFetched   = "fetched"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

type ProcessingService struct {
	db     *storage.DB
	parser *Parser
}

func NewProcessingService(db *storage.DB, parser *Parser) *ProcessingService {
	return &ProcessingService{db: db, parser: parser}
}

type ProcessResult struct {
	DocumentID    int
	Records       int
	Warnings      int
	LowConfidence int
	// Runs counts every processing run of the document, this one included.
	Runs int
}

func (s *ProcessingService) ProcessByID(documentID int) (ProcessResult, error) {
	doc, err := s.db.MustDocument(documentID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessDocument(doc)
}

// ProcessPending processes fetched documents oldest first and stops at the first storage error.
// A document that fails to load is marked failed and does not stop the batch.
func (s *ProcessingService) ProcessPending(limit int, source string) (int, int, error) {
	pending, err := s.db.ListDocumentsByStatus(StatusFetched, source, limit)
	if err != nil {
		return 0, 0, err
	}
	processedDocs := 0
	processedRecords := 0
	for _, doc := range pending {
		res, err := s.ProcessDocument(doc)
		if err != nil {
			if isLoadError(err) {
				logger.Warn("document %d (%s): %v", doc.ID, doc.Name, err)
				continue
			}
			return processedDocs, processedRecords, err
		}
		processedDocs++
		processedRecords += res.Records
	}
	return processedDocs, processedRecords, nil
}

// ProcessDocument replaces the stored records of doc with a fresh parse of its raw file.
func (s *ProcessingService) ProcessDocument(doc internal.DocumentRow) (ProcessResult, error) {
	start := time.Now()
	runID := uuid.NewString()

	sources, err := loader.LoadSourcesFile(doc.RawRef)
	loadMs := float64(time.Since(start).Milliseconds())
	if err != nil {
		_ = s.db.UpdateDocumentStatus(doc.ID, StatusFailed)
		_ = s.db.InsertRun(runID, doc.ID, map[string]float64{"loadMs": loadMs, "totalMs": loadMs}, map[string]int{"records": 0, "warnings": 0, "lowConfidence": 0})
		return ProcessResult{DocumentID: doc.ID}, err
	}

	parsed := s.parser.ParseSources(sources)
	parseMs := float64(time.Since(start).Milliseconds()) - loadMs

	if err := s.db.ClearDocumentRecords(doc.ID); err != nil {
		return ProcessResult{}, err
	}

	res := ProcessResult{DocumentID: doc.ID}
	for _, src := range parsed {
		if _, err := s.db.InsertRecord(doc.ID, src.Name, runID, src.Record); err != nil {
			return ProcessResult{}, fmt.Errorf("store record %s: %w", src.Name, err)
		}
		res.Records++
		res.Warnings += len(src.Record.Warnings)
		if s.parser.IsLowConfidence(src.Record) {
			res.LowConfidence++
		}
	}

	if err := s.db.UpdateDocumentStatus(doc.ID, StatusProcessed); err != nil {
		return ProcessResult{}, err
	}
	totalMs := float64(time.Since(start).Milliseconds())
	if err := s.db.InsertRun(runID, doc.ID,
		map[string]float64{"loadMs": loadMs, "parseMs": parseMs, "totalMs": totalMs},
		map[string]int{"records": res.Records, "warnings": res.Warnings, "lowConfidence": res.LowConfidence}); err != nil {
		return res, fmt.Errorf("record run: %w", err)
	}
	runs, err := s.db.CountRuns(doc.ID)
	if err != nil {
		return res, err
	}
	res.Runs = runs

	logger.Debug("document %d: %d records, %d warnings, %d low confidence (run %d, %s)", doc.ID, res.Records, res.Warnings, res.LowConfidence, runs, runID)
	return res, nil
}

func isLoadError(err error) bool {
	var ve *loader.ValidationError
	return errors.As(err, &ve)
}
