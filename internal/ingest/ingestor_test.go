package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hoanvu/ragserve/internal/embedding"
	"github.com/hoanvu/ragserve/internal/extract"
	"github.com/hoanvu/ragserve/internal/registry"
	"github.com/hoanvu/ragserve/internal/vectorstore"
)

func newTestIngestor(t *testing.T) (*Ingestor, *vectorstore.Store, *registry.Registry) {
	t.Helper()
	dir := t.TempDir()
	store, err := vectorstore.NewStore(embedding.NewMockEmbedder(8), vectorstore.Paths{
		Index:           filepath.Join(dir, "index.bin"),
		ChunkCatalog:    filepath.Join(dir, "chunks.json"),
		DocumentCatalog: filepath.Join(dir, "documents.json"),
	})
	if err != nil {
		t.Fatal(err)
	}
	reg, err := registry.Open(filepath.Join(dir, "registry.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	ing := NewIngestor(extract.NewExtractor(), NewChunker(5, 1), store, reg)
	return ing, store, reg
}

func TestIngestor_IngestFile(t *testing.T) {
	ing, store, _ := newTestIngestor(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "luat.txt")
	text := strings.Repeat("an toàn thông tin mạng ", 5)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := ing.IngestFile(ctx, path, "Luat")
	if err != nil {
		t.Fatal(err)
	}
	if res.ChunkCount == 0 {
		t.Fatal("no chunks produced")
	}
	if res.Filename != "luat.txt" {
		t.Errorf("filename = %q", res.Filename)
	}
	if store.Stats().TotalVectors != res.ChunkCount {
		t.Errorf("store has %d vectors, result says %d chunks", store.Stats().TotalVectors, res.ChunkCount)
	}
}

func TestIngestor_ReingestReplaces(t *testing.T) {
	ing, store, _ := newTestIngestor(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("bảo mật dữ liệu ", 10)), 0644); err != nil {
		t.Fatal(err)
	}

	first, err := ing.IngestFile(ctx, path, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := ing.IngestFile(ctx, path, "")
	if err != nil {
		t.Fatal(err)
	}
	if first.DocumentID != second.DocumentID {
		t.Errorf("same path produced different ids: %s vs %s", first.DocumentID, second.DocumentID)
	}
	if store.Stats().TotalVectors != second.ChunkCount {
		t.Errorf("re-ingest duplicated chunks: %d vectors for %d chunks",
			store.Stats().TotalVectors, second.ChunkCount)
	}
	if store.Stats().TotalDocuments != 1 {
		t.Errorf("documents = %d", store.Stats().TotalDocuments)
	}
}

func TestIngestor_IngestUpload(t *testing.T) {
	ing, store, reg := newTestIngestor(t)
	ctx := context.Background()

	content := []byte(strings.Repeat("tấn công mạng và phòng thủ ", 8))
	res, err := ing.IngestUpload(ctx, content, "báo-cáo.txt", "Uploads")
	if err != nil {
		t.Fatal(err)
	}
	if res.ChunkCount == 0 {
		t.Fatal("no chunks produced")
	}

	rec, err := reg.Get(ctx, res.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != registry.StatusProcessed {
		t.Errorf("status = %q", rec.Status)
	}
	if rec.ChunkCount != res.ChunkCount {
		t.Errorf("registry chunk count = %d, want %d", rec.ChunkCount, res.ChunkCount)
	}
	if store.Stats().TotalVectors != res.ChunkCount {
		t.Errorf("store vectors = %d", store.Stats().TotalVectors)
	}
}

func TestIngestor_IngestUploadUnsupported(t *testing.T) {
	ing, _, reg := newTestIngestor(t)
	ctx := context.Background()

	if _, err := ing.IngestUpload(ctx, []byte("MZ"), "tool.exe", ""); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	// Nothing registered for a rejected upload.
	count, _ := reg.Count(ctx)
	if count != 0 {
		t.Errorf("registry count = %d", count)
	}
}

func TestIngestor_IngestUploadEmptyText(t *testing.T) {
	ing, _, reg := newTestIngestor(t)
	ctx := context.Background()

	_, err := ing.IngestUpload(ctx, []byte("   \n "), "trống.txt", "")
	if err == nil {
		t.Fatal("expected error for empty document")
	}
	// The failure is recorded so the upload is visible in listings.
	recs, _ := reg.List(ctx)
	if len(recs) != 1 || recs[0].Status != registry.StatusError {
		t.Errorf("registry records = %+v", recs)
	}
}

func TestIngestor_DeleteDocument(t *testing.T) {
	ing, store, reg := newTestIngestor(t)
	ctx := context.Background()

	res, err := ing.IngestUpload(ctx, []byte(strings.Repeat("mã hóa ", 10)), "mã-hóa.txt", "")
	if err != nil {
		t.Fatal(err)
	}

	existed, err := ing.DeleteDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if !existed {
		t.Fatal("delete returned false")
	}
	if store.Stats().TotalVectors != 0 {
		t.Errorf("vectors after delete = %d", store.Stats().TotalVectors)
	}
	if _, err := reg.Get(ctx, res.DocumentID); err != registry.ErrNotFound {
		t.Errorf("registry still has the document: %v", err)
	}

	existed, err = ing.DeleteDocument(ctx, "missing")
	if err != nil || existed {
		t.Errorf("delete missing = (%v, %v)", existed, err)
	}
}

func TestIngestor_IngestDir(t *testing.T) {
	ing, store, _ := newTestIngestor(t)
	ctx := context.Background()

	dir := t.TempDir()
	sub := filepath.Join(dir, "Luat")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		filepath.Join(sub, "a.txt"): strings.Repeat("an ninh mạng ", 6),
		filepath.Join(sub, "b.md"):  strings.Repeat("bảo mật ", 6),
		filepath.Join(sub, "c.exe"): "not a document",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	count, err := ing.IngestDir(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("ingested %d files, want 2", count)
	}
	if store.Stats().TotalDocuments != 2 {
		t.Errorf("documents = %d", store.Stats().TotalDocuments)
	}
	// Category defaults to the parent directory name.
	for _, doc := range store.Documents() {
		if doc.Category != "Luat" {
			t.Errorf("category = %q", doc.Category)
		}
	}
}
