package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weighocr/internal/pipeline"
)

func TestIngestRegistersAndProcessesFile(t *testing.T) {
	db, cfg := testSetup(t)
	require.NoError(t, os.MkdirAll(cfg.InboxDir, 0o755))
	w := NewWatcher(db, cfg, pipeline.NewDefaultParser())

	path := filepath.Join(cfg.InboxDir, "cert.json")
	require.NoError(t, os.WriteFile(path, []byte(certJSON), 0o644))

	ok, err := w.Ingest(path)
	require.NoError(t, err)
	assert.True(t, ok)

	doc, err := db.GetDocumentBySourceName(SourceFile, path)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, StatusExported, doc.Status)

	recs, err := db.ListDocumentRecords(doc.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "12가3456", *recs[0].Record.VehicleNo)

	_, err = os.Stat(filepath.Join(cfg.OutputDir, "inbox", "1_"+SanitizeName(path)+".xlsx"))
	assert.NoError(t, err)

	ok, err = w.Ingest(path)
	require.NoError(t, err)
	assert.False(t, ok, "unchanged file is skipped")

	require.NoError(t, os.WriteFile(path, []byte(`{"text": "총중량 1,000 kg"}`), 0o644))
	ok, err = w.Ingest(path)
	require.NoError(t, err)
	assert.True(t, ok, "rewritten file is parsed again")

	recs, err = db.ListDocumentRecords(doc.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].Record.VehicleNo)
}

func TestHandleEventFilters(t *testing.T) {
	db, cfg := testSetup(t)
	require.NoError(t, os.MkdirAll(cfg.InboxDir, 0o755))
	w := NewWatcher(db, cfg, pipeline.NewDefaultParser())

	write := func(name, body string) string {
		p := filepath.Join(cfg.InboxDir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	sub := filepath.Join(cfg.InboxDir, "nested.json")
	require.NoError(t, os.Mkdir(sub, 0o755))

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"create txt", write("a.txt", "총중량 1,000 kg"), fsnotify.Create, true},
		{"write json", write("b.json", certJSON), fsnotify.Write, true},
		{"chmod ignored", write("c.json", certJSON), fsnotify.Chmod, false},
		{"remove ignored", filepath.Join(cfg.InboxDir, "gone.json"), fsnotify.Remove, false},
		{"hidden ignored", write(".d.json", certJSON), fsnotify.Create, false},
		{"unsupported ignored", write("e.png", "png"), fsnotify.Create, false},
		{"directory ignored", sub, fsnotify.Create, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.handleEvent(fsnotify.Event{Name: tt.path, Op: tt.op}))
		})
	}
}

func TestRunPicksUpExistingAndNewFiles(t *testing.T) {
	db, cfg := testSetup(t)
	cfg.MailListenerAutoExport = false
	require.NoError(t, os.MkdirAll(cfg.InboxDir, 0o755))
	existing := filepath.Join(cfg.InboxDir, "first.json")
	require.NoError(t, os.WriteFile(existing, []byte(certJSON), 0o644))

	w := NewWatcher(db, cfg, pipeline.NewDefaultParser())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool {
		doc, _ := db.GetDocumentBySourceName(SourceFile, existing)
		return doc != nil && doc.Status == pipeline.StatusProcessed
	}, 5*time.Second, 20*time.Millisecond)

	added := filepath.Join(cfg.InboxDir, "second.txt")
	require.NoError(t, os.WriteFile(added, []byte("계량표\n총중량 9,000 kg"), 0o644))

	assert.Eventually(t, func() bool {
		doc, _ := db.GetDocumentBySourceName(SourceFile, added)
		return doc != nil && doc.Status == pipeline.StatusProcessed
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
