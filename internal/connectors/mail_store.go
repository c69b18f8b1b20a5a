package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"weighocr/internal"
	"weighocr/internal/pipeline"
	"weighocr/internal/storage"
)

type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

// Store keeps one .eml per content hash and registers the message as a fetched document.
// A message already stored with the same hash is left alone and reported as unchanged.
func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (internal.DocumentRow, bool, error) {
	hash := HashBytes(msg.Raw)

	existing, err := s.db.GetDocumentBySourceName(msg.Provider, msg.MessageID)
	if err != nil {
		return internal.DocumentRow{}, false, err
	}
	if existing != nil && existing.Hash == hash {
		return *existing, false, nil
	}

	rawPath, err := s.writeRaw(hash, msg.Raw)
	if err != nil {
		return internal.DocumentRow{}, false, err
	}
	doc, err := s.db.UpsertDocument(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, pipeline.StatusFetched)
	if err != nil {
		return internal.DocumentRow{}, false, err
	}
	if existing != nil {
		// new content under a known message id must be parsed again
		if err := s.db.UpdateDocumentStatus(doc.ID, pipeline.StatusFetched); err != nil {
			return internal.DocumentRow{}, false, err
		}
		doc.Status = pipeline.StatusFetched
	}
	return doc, true, nil
}

func (s *MailStoreService) writeRaw(hash string, raw []byte) (string, error) {
	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	tmp, err := os.CreateTemp(s.rawMailDir, ".incoming-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write raw message: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return path, nil
}

func HashBytes(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
