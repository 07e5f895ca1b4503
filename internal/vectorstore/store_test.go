package vectorstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hoanvu/ragserve/internal/embedding"
	"github.com/hoanvu/ragserve/internal/models"
)

func newTestStore(t *testing.T, dim int) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(embedding.NewMockEmbedder(dim), Paths{
		Index:           filepath.Join(dir, "index.bin"),
		ChunkCatalog:    filepath.Join(dir, "chunks.json"),
		DocumentCatalog: filepath.Join(dir, "documents.json"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore_AddChunks(t *testing.T) {
	s := newTestStore(t, 8)
	ctx := context.Background()

	ids, err := s.AddChunks(ctx, []string{"mã hóa dữ liệu", "tường lửa"}, "docA", "attt.pdf", "Luat")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d chunk ids", len(ids))
	}
	if ids[0] != "docA_0" || ids[1] != "docA_1" {
		t.Errorf("chunk ids = %v", ids)
	}

	// A second batch for the same document continues the ordinals.
	more, err := s.AddChunks(ctx, []string{"phần mềm độc hại"}, "docA", "attt.pdf", "Luat")
	if err != nil {
		t.Fatal(err)
	}
	if more[0] != "docA_2" {
		t.Errorf("continued chunk id = %s", more[0])
	}

	stats := s.Stats()
	if stats.TotalVectors != 3 || stats.TotalChunks != 3 || stats.TotalDocuments != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStore_PositionInvariant(t *testing.T) {
	s := newTestStore(t, 8)
	ctx := context.Background()
	_, _ = s.AddChunks(ctx, []string{"a", "b"}, "docA", "a.txt", "")
	_, _ = s.AddChunks(ctx, []string{"c"}, "docB", "b.txt", "")

	for i, rec := range s.catalog.records {
		if rec.Position != i {
			t.Errorf("record %s position = %d, slot = %d", rec.ChunkID, rec.Position, i)
		}
	}
}

func TestStore_CardinalityInvariant(t *testing.T) {
	s := newTestStore(t, 8)
	ctx := context.Background()
	_, _ = s.AddChunks(ctx, []string{"a", "b", "c"}, "docA", "a.txt", "")

	doc := s.catalog.docs["docA"]
	if doc.ChunkCount != len(doc.ChunkIDs) {
		t.Errorf("chunk_count %d != len(chunk_ids) %d", doc.ChunkCount, len(doc.ChunkIDs))
	}
	count := 0
	for _, rec := range s.catalog.records {
		if rec.DocumentID == "docA" {
			count++
		}
	}
	if count != doc.ChunkCount {
		t.Errorf("records with docA = %d, chunk_count = %d", count, doc.ChunkCount)
	}
}

func TestStore_SearchEmptyStore(t *testing.T) {
	s := newTestStore(t, 4)
	results, err := s.SearchText(context.Background(), "câu hỏi", 5, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty store returned %d results", len(results))
	}
}

func TestStore_SearchValidation(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	var verr *ValidationError
	if _, err := s.SearchText(ctx, "   ", 5, Filters{}); !errors.As(err, &verr) {
		t.Errorf("blank query error = %v", err)
	}
	if _, err := s.Search(ctx, nil, 5, Filters{}); !errors.As(err, &verr) {
		t.Errorf("empty vector error = %v", err)
	}
	if _, err := s.Search(ctx, []float32{1, 0}, 5, Filters{}); !errors.As(err, &verr) {
		t.Errorf("wrong dimension error = %v", err)
	}
}

func TestStore_SearchIdempotent(t *testing.T) {
	s := newTestStore(t, 8)
	ctx := context.Background()
	_, _ = s.AddChunks(ctx, []string{"bảo mật mạng", "mã độc", "xác thực"}, "docA", "a.txt", "")

	first, err := s.SearchText(ctx, "mã độc tống tiền", 3, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.SearchText(ctx, "mã độc tống tiền", 3, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("result counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ChunkID != second[i].ChunkID || first[i].SimilarityScore != second[i].SimilarityScore {
			t.Errorf("result %d differs between identical searches", i)
		}
	}
}

func TestStore_SearchReturnsCopies(t *testing.T) {
	s := newTestStore(t, 8)
	ctx := context.Background()
	_, _ = s.AddChunks(ctx, []string{"nội dung gốc"}, "docA", "a.txt", "")

	results, _ := s.SearchText(ctx, "nội dung", 1, Filters{})
	if len(results) != 1 {
		t.Fatal("expected one result")
	}
	results[0].Content = "đã sửa"

	again, _ := s.SearchText(ctx, "nội dung", 1, Filters{})
	if again[0].Content != "nội dung gốc" {
		t.Error("search mutated the stored record")
	}
}

func TestStore_SearchFilters(t *testing.T) {
	s := newTestStore(t, 8)
	ctx := context.Background()
	_, _ = s.AddChunks(ctx, []string{"một", "hai"}, "docA", "a.txt", "Luat")
	_, _ = s.AddChunks(ctx, []string{"ba"}, "docB", "b.txt", "Uploads")

	results, err := s.SearchText(ctx, "một hai ba", 10, Filters{DocumentID: "docB"})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.DocumentID != "docB" {
			t.Errorf("filter leaked document %s", r.DocumentID)
		}
	}

	results, err = s.SearchText(ctx, "một hai ba", 10, Filters{Category: "Luat"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("category filter returned %d results, want 2", len(results))
	}
}

func TestStore_DeleteDocument(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()
	_, _ = s.AddChunks(ctx, []string{"a1", "a2", "a3"}, "docA", "a.txt", "")
	_, _ = s.AddChunks(ctx, []string{"b1", "b2"}, "docB", "b.txt", "")

	if s.Stats().TotalVectors != 5 {
		t.Fatalf("total vectors = %d", s.Stats().TotalVectors)
	}

	// Record surviving content+score before the rebuild.
	before, err := s.SearchText(ctx, "b1 b2", 5, Filters{DocumentID: "docB"})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := s.DeleteDocument("docA")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("delete returned false for existing document")
	}

	stats := s.Stats()
	if stats.TotalVectors != 2 || stats.TotalDocuments != 1 || stats.TotalChunks != 2 {
		t.Errorf("stats after delete = %+v", stats)
	}

	results, err := s.SearchText(ctx, "b1 b2", 10, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("search after delete returned %d results", len(results))
	}
	for _, r := range results {
		if r.DocumentID != "docB" {
			t.Errorf("deleted document still searchable: %s", r.ChunkID)
		}
	}

	// Surviving chunks keep their scored content.
	byID := make(map[string]models.ScoredChunk)
	for _, r := range results {
		byID[r.ChunkID] = r
	}
	for _, want := range before {
		got, ok := byID[want.ChunkID]
		if !ok {
			t.Errorf("survivor %s missing after rebuild", want.ChunkID)
			continue
		}
		if got.Content != want.Content || got.SimilarityScore != want.SimilarityScore {
			t.Errorf("survivor %s changed after rebuild", want.ChunkID)
		}
	}

	// Positions renumbered contiguously from 0.
	for i, rec := range s.catalog.records {
		if rec.Position != i {
			t.Errorf("position %d at slot %d after rebuild", rec.Position, i)
		}
	}
}

func TestStore_DeleteUnknownDocument(t *testing.T) {
	s := newTestStore(t, 4)
	ok, err := s.DeleteDocument("missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("delete of unknown document returned true")
	}
}

func TestStore_PersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		Index:           filepath.Join(dir, "index.bin"),
		ChunkCatalog:    filepath.Join(dir, "chunks.json"),
		DocumentCatalog: filepath.Join(dir, "documents.json"),
	}
	embedder := embedding.NewMockEmbedder(8)
	s, err := NewStore(embedder, paths)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_, _ = s.AddChunks(ctx, []string{"Bảo mật thông tin là gì?", "Tường lửa hoạt động ra sao?"}, "docA", "hỏi-đáp.pdf", "TaiLieuTiengViet")
	if err := s.Persist(); err != nil {
		t.Fatal(err)
	}

	fresh, err := NewStore(embedder, paths)
	if err != nil {
		t.Fatal(err)
	}
	if err := fresh.Load(); err != nil {
		t.Fatal(err)
	}

	if fresh.Stats() != s.Stats() {
		t.Errorf("stats differ: %+v vs %+v", fresh.Stats(), s.Stats())
	}

	orig, err := s.SearchText(ctx, "bảo mật", 2, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := fresh.SearchText(ctx, "bảo mật", 2, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(orig) != len(loaded) {
		t.Fatalf("result counts differ: %d vs %d", len(orig), len(loaded))
	}
	for i := range orig {
		if orig[i].ChunkID != loaded[i].ChunkID || orig[i].SimilarityScore != loaded[i].SimilarityScore {
			t.Errorf("result %d differs after reload", i)
		}
		// Vietnamese content must round-trip exactly.
		if orig[i].Content != loaded[i].Content || orig[i].Filename != loaded[i].Filename {
			t.Errorf("non-ASCII content did not round-trip: %q vs %q", orig[i].Content, loaded[i].Content)
		}
	}
}

func TestStore_LoadMissingFiles(t *testing.T) {
	s := newTestStore(t, 4)
	if err := s.Load(); err != nil {
		t.Fatalf("load with missing files: %v", err)
	}
	if s.Stats().TotalVectors != 0 {
		t.Errorf("stats = %+v", s.Stats())
	}
}

func TestStore_DocumentChunks(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()
	_, _ = s.AddChunks(ctx, []string{"x", "y"}, "docA", "a.txt", "")

	chunks := s.DocumentChunks("docA")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].Ordinal != 0 || chunks[1].Ordinal != 1 {
		t.Error("chunks not ordered by ordinal")
	}
	if len(s.DocumentChunks("missing")) != 0 {
		t.Error("unknown document returned chunks")
	}
}

func TestStore_ClearAll(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()
	_, _ = s.AddChunks(ctx, []string{"x"}, "docA", "a.txt", "")
	if err := s.ClearAll(); err != nil {
		t.Fatal(err)
	}
	stats := s.Stats()
	if stats.TotalVectors != 0 || stats.TotalDocuments != 0 || stats.TotalChunks != 0 {
		t.Errorf("stats after clear = %+v", stats)
	}
}
