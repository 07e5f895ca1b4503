// Package vectorstore composes the similarity index with the chunk and document
// catalogs. It is the only component that mutates either. Document deletion is
// built on the append-only index by rebuilding a fresh index from the surviving
// vectors and swapping the (index, catalog) pair atomically.
package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hoanvu/ragserve/internal/embedding"
	"github.com/hoanvu/ragserve/internal/models"
	"github.com/hoanvu/ragserve/internal/vector"
	"github.com/hoanvu/ragserve/pkg/utils"
)

// Paths are the durable files for the index blob and the two catalogs.
type Paths struct {
	Index           string
	ChunkCatalog    string
	DocumentCatalog string
}

// Filters restrict search results by exact match. Empty fields match everything.
type Filters struct {
	DocumentID string
	Category   string
}

// Store is the vector store. Searches run concurrently under the read lock;
// ingestion and delete-rebuild hold the write lock, so a search always sees one
// complete (index, catalog) pair start-to-finish.
type Store struct {
	mu       sync.RWMutex
	index    *vector.FlatIndex
	catalog  *catalog
	embedder embedding.Embedder
	paths    Paths
	logger   *zap.Logger // optional; when set, logs debug events
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets a logger for debug output (chunks added, documents deleted, etc.).
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a vector store with the embedder's dimension.
func NewStore(embedder embedding.Embedder, paths Paths, opts ...StoreOption) (*Store, error) {
	idx, err := vector.NewFlatIndex(embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	s := &Store{
		index:    idx,
		catalog:  newCatalog(),
		embedder: embedder,
		paths:    paths,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dimensions returns the store's fixed vector dimension.
func (s *Store) Dimensions() int {
	return s.index.Dimensions()
}

// AddChunks embeds texts, normalizes the vectors, and appends them with their
// metadata. Chunk ordinals continue from the document's existing chunk count,
// and chunk IDs are "<documentID>_<ordinal>". Returns chunk IDs in input order.
// Nothing is persisted implicitly; the caller decides when to call Persist.
func (s *Store) AddChunks(ctx context.Context, texts []string, documentID, filename, category string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	dim := s.index.Dimensions()
	for i, vec := range vecs {
		if len(vec) != dim {
			return nil, &ValidationError{Reason: fmt.Sprintf("embedding %d has dimension %d, expected %d", i, len(vec), dim)}
		}
		if !utils.IsFinite(vec) {
			return nil, &ValidationError{Reason: fmt.Sprintf("embedding %d contains NaN or Inf", i)}
		}
		utils.NormalizeL2(vec)
	}

	// Position allocation and append are one exclusive section so two
	// concurrent ingestions never share a position.
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.catalog.docs[documentID]
	if !ok {
		entry = &models.DocumentEntry{
			DocumentID: documentID,
			Filename:   filename,
			Category:   category,
			CreatedAt:  time.Now().UTC(),
		}
		s.catalog.docs[documentID] = entry
	}

	chunkIDs := make([]string, 0, len(texts))
	startOrdinal := entry.ChunkCount
	for i, text := range texts {
		pos, err := s.index.Add(vecs[i])
		if err != nil {
			return nil, fmt.Errorf("append vector: %w", err)
		}
		ordinal := startOrdinal + i
		rec := &models.ChunkRecord{
			ChunkID:    fmt.Sprintf("%s_%d", documentID, ordinal),
			DocumentID: documentID,
			Ordinal:    ordinal,
			Content:    text,
			Filename:   filename,
			Category:   category,
			Position:   pos,
			CreatedAt:  time.Now().UTC(),
		}
		s.catalog.add(rec)
		entry.ChunkIDs = append(entry.ChunkIDs, rec.ChunkID)
		entry.ChunkCount++
		chunkIDs = append(chunkIDs, rec.ChunkID)
	}

	if s.logger != nil {
		s.logger.Debug("chunks added",
			zap.String("document_id", documentID),
			zap.Int("count", len(chunkIDs)),
			zap.Int("total_vectors", s.index.NTotal()),
		)
	}
	return chunkIDs, nil
}

// Search returns up to topK chunks nearest to queryVector by cosine similarity.
// The query is normalized here; callers pass raw vectors. An empty store yields
// an empty result, not an error. Filters are applied after the index query, so
// fewer than topK results may remain; there is no backfill re-query.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int, f Filters) ([]models.ScoredChunk, error) {
	if len(queryVector) == 0 {
		return nil, &ValidationError{Reason: "query vector is empty"}
	}
	if len(queryVector) != s.index.Dimensions() {
		return nil, &ValidationError{Reason: fmt.Sprintf("query has dimension %d, expected %d", len(queryVector), s.index.Dimensions())}
	}
	if !utils.IsFinite(queryVector) {
		return nil, &ValidationError{Reason: "query vector contains NaN or Inf"}
	}
	query := make([]float32, len(queryVector))
	copy(query, queryVector)
	utils.NormalizeL2(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index.NTotal() == 0 {
		return []models.ScoredChunk{}, nil
	}
	scores, positions, err := s.index.Search(query, topK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	results := make([]models.ScoredChunk, 0, topK)
	for i, pos := range positions {
		if pos == vector.NoMatch {
			continue
		}
		rec := s.catalog.byPosition(pos)
		if rec == nil {
			continue
		}
		if f.DocumentID != "" && rec.DocumentID != f.DocumentID {
			continue
		}
		if f.Category != "" && rec.Category != f.Category {
			continue
		}
		results = append(results, models.ScoredChunk{
			ChunkRecord:     *rec,
			SimilarityScore: float64(scores[i]),
		})
	}
	return results, nil
}

// SearchText embeds query and searches. A blank query is a validation error.
func (s *Store) SearchText(ctx context.Context, query string, topK int, f Filters) ([]models.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Reason: "query text is blank"}
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.Search(ctx, vec, topK, f)
}

// DeleteDocument removes a document and all its chunks. Because the index has
// no removal operation, the surviving vectors are reconstructed from their old
// positions in original creation order into a fresh index, positions are
// renumbered 0..n-1, and the (index, catalog) pair is swapped in one step under
// the write lock. Unknown documents return (false, nil). If any surviving
// vector cannot be reconstructed, nothing is swapped and the store keeps its
// pre-delete state. O(total surviving vectors); not for hot paths.
func (s *Store) DeleteDocument(documentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.catalog.docs[documentID]
	if !ok {
		return false, nil
	}

	newIndex, err := vector.NewFlatIndex(s.index.Dimensions())
	if err != nil {
		return false, err
	}
	newCat := newCatalog()
	for _, rec := range s.catalog.records {
		if rec.DocumentID == documentID {
			continue
		}
		vec, err := s.index.Reconstruct(rec.Position)
		if err != nil {
			return false, fmt.Errorf("%w: chunk %s at position %d: %v",
				ErrRebuildInconsistent, rec.ChunkID, rec.Position, err)
		}
		pos, err := newIndex.Add(vec)
		if err != nil {
			return false, fmt.Errorf("%w: re-add chunk %s: %v", ErrRebuildInconsistent, rec.ChunkID, err)
		}
		survivor := *rec
		survivor.Position = pos
		newCat.add(&survivor)
	}
	for id, doc := range s.catalog.docs {
		if id != documentID {
			newCat.docs[id] = doc
		}
	}

	s.index = newIndex
	s.catalog = newCat

	if s.logger != nil {
		s.logger.Debug("document deleted",
			zap.String("document_id", documentID),
			zap.Int("removed_chunks", entry.ChunkCount),
			zap.Int("total_vectors", s.index.NTotal()),
		)
	}
	return true, nil
}

// DocumentChunks returns copies of the document's chunk records ordered by
// ordinal. Unknown documents yield an empty slice.
func (s *Store) DocumentChunks(documentID string) []models.ChunkRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog.documentChunks(documentID)
}

// Documents returns copies of all document entries.
func (s *Store) Documents() []models.DocumentEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DocumentEntry, 0, len(s.catalog.docs))
	for _, doc := range s.catalog.docs {
		d := *doc
		d.ChunkIDs = append([]string(nil), doc.ChunkIDs...)
		out = append(out, d)
	}
	return out
}

// Stats returns the store's derived counters.
func (s *Store) Stats() models.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.StoreStats{
		TotalVectors:   s.index.NTotal(),
		TotalDocuments: len(s.catalog.docs),
		TotalChunks:    len(s.catalog.records),
		Dimension:      s.index.Dimensions(),
	}
}

// ClearAll resets the store to an empty index and catalogs.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := vector.NewFlatIndex(s.index.Dimensions())
	if err != nil {
		return err
	}
	s.index = idx
	s.catalog = newCatalog()
	return nil
}
