package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"weighocr/internal"
	"weighocr/internal/connectors"
	"weighocr/internal/loader"
	"weighocr/internal/pipeline"
	"weighocr/internal/storage"
)

const (
	SourceAPI    = "api"
	maxBodyBytes = 32 << 20
)

// Handler serves parse requests. The parser is shared; every request parses into its own record.
type Handler struct {
	db     *storage.DB
	parser *pipeline.Parser
	rawDir string
}

func NewHandler(db *storage.DB, parser *pipeline.Parser, rawDir string) *Handler {
	return &Handler{db: db, parser: parser, rawDir: rawDir}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)

	router.POST("/parse", h.Parse)

	router.GET("/records", h.ListRecords)
	router.GET("/records/:id", h.GetRecord)
}

type sourceRecordResponse struct {
	Name   string                `json:"name"`
	Record internal.ParsedRecord `json:"record"`
}

type parseResponse struct {
	DocumentID *int                   `json:"documentId,omitempty"`
	Records    []sourceRecordResponse `json:"records"`
}

type storedRecordResponse struct {
	ID         int64                 `json:"id"`
	DocumentID int                   `json:"documentId"`
	Attachment string                `json:"attachment"`
	RunID      string                `json:"runId"`
	CreatedAt  string                `json:"createdAt"`
	Record     internal.ParsedRecord `json:"record"`
}

func toStoredResponse(rec internal.StoredRecord) storedRecordResponse {
	return storedRecordResponse{
		ID:         rec.ID,
		DocumentID: rec.DocumentID,
		Attachment: rec.Attachment,
		RunID:      rec.RunID,
		CreatedAt:  rec.CreatedAt,
		Record:     rec.Record,
	}
}

func errorBody(err error) gin.H {
	return gin.H{"error": err.Error()}
}

// Parse reads the raw request body. ?name= picks the input format by extension and
// ?store=1 keeps the input and its records.
func (h *Handler) Parse(c *gin.Context) {
	blob, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}
	if len(blob) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
		return
	}
	if len(blob) > maxBodyBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}

	name := filepath.Base(strings.TrimSpace(c.Query("name")))
	if name == "" || name == "." || name == "/" {
		name = "input.json"
	}

	if store, _ := strconv.ParseBool(c.DefaultQuery("store", "0")); store {
		h.parseAndStore(c, name, blob)
		return
	}

	parsed, err := h.parser.ParseBytes(name, blob)
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	resp := parseResponse{Records: make([]sourceRecordResponse, 0, len(parsed))}
	for _, p := range parsed {
		resp.Records = append(resp.Records, sourceRecordResponse{Name: p.Name, Record: p.Record})
	}
	c.PureJSON(http.StatusOK, resp)
}

func (h *Handler) parseAndStore(c *gin.Context, name string, blob []byte) {
	hash := connectors.HashBytes(blob)
	if err := os.MkdirAll(h.rawDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(err))
		return
	}
	rawPath := filepath.Join(h.rawDir, hash+filepath.Ext(name))
	if err := os.WriteFile(rawPath, blob, 0o644); err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(err))
		return
	}

	doc, err := h.db.UpsertDocument(SourceAPI, hash+filepath.Ext(name), name, "", "", hash, rawPath, pipeline.StatusFetched)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(err))
		return
	}
	if _, err := pipeline.NewProcessingService(h.db, h.parser).ProcessDocument(doc); err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}

	stored, err := h.db.ListDocumentRecords(doc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(err))
		return
	}
	resp := parseResponse{DocumentID: &doc.ID, Records: make([]sourceRecordResponse, 0, len(stored))}
	for _, rec := range stored {
		resp.Records = append(resp.Records, sourceRecordResponse{Name: rec.Attachment, Record: rec.Record})
	}
	c.PureJSON(http.StatusOK, resp)
}

func statusFor(err error) int {
	var ve *loader.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *Handler) ListRecords(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > 1000 {
		limit = 1000
	}

	records, err := h.db.ListRecords(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(err))
		return
	}
	items := make([]storedRecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toStoredResponse(rec))
	}
	c.PureJSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) GetRecord(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}
	rec, err := h.db.GetRecord(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(err))
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.PureJSON(http.StatusOK, toStoredResponse(*rec))
}

func (h *Handler) GetStatus(c *gin.Context) {
	documents, err := h.db.CountDocumentsByStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(err))
		return
	}
	warningCodes, err := h.db.CountWarningsByCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"documents":              documents,
		"warnings":               warningCodes,
		"lowConfidenceThreshold": h.parser.Thresholds().LowConfidence,
	})
}
