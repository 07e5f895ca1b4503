package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hoanvu/ragserve/internal/extract"
	"github.com/hoanvu/ragserve/internal/fileid"
	"github.com/hoanvu/ragserve/internal/registry"
	"github.com/hoanvu/ragserve/internal/vectorstore"
)

// Ingestor runs the extract-chunk-embed-index pipeline and keeps the registry
// and the vector store consistent for each document.
type Ingestor struct {
	extractor *extract.Extractor
	chunker   *Chunker
	store     *vectorstore.Store
	registry  *registry.Registry
	logger    *zap.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets a logger for ingestion progress.
func WithLogger(l *zap.Logger) Option {
	return func(i *Ingestor) { i.logger = l }
}

// NewIngestor wires the pipeline. registry may be nil when lifecycle tracking
// is not wanted.
func NewIngestor(extractor *extract.Extractor, chunker *Chunker, store *vectorstore.Store, reg *registry.Registry, opts ...Option) *Ingestor {
	ing := &Ingestor{
		extractor: extractor,
		chunker:   chunker,
		store:     store,
		registry:  reg,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Result reports what an ingestion produced.
type Result struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
}

// IngestFile ingests a document from disk. The document id derives from the
// absolute path, so re-ingesting the same file replaces its chunks instead of
// appending duplicates. The category defaults to the parent directory name.
func (i *Ingestor) IngestFile(ctx context.Context, path, category string) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if category == "" {
		category = filepath.Base(filepath.Dir(absPath))
	}
	docID := fileid.FileDocID(absPath)
	filename := filepath.Base(absPath)

	// Replace any previous version of this file.
	if _, err := i.store.DeleteDocument(docID); err != nil {
		return nil, fmt.Errorf("remove previous version: %w", err)
	}

	text, err := i.extractor.Extract(absPath)
	if err != nil {
		i.markError(ctx, docID, filename, category, info.Size(), err)
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	return i.index(ctx, docID, filename, category, info.Size(), text)
}

// IngestUpload ingests an uploaded document held in memory. A fresh UUID
// becomes the document id; the format is taken from the filename extension.
func (i *Ingestor) IngestUpload(ctx context.Context, content []byte, filename, category string) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !i.extractor.Supported(ext) {
		return nil, &extract.ErrUnsupportedFormat{Ext: ext}
	}
	docID := uuid.New().String()

	if i.registry != nil {
		rec := &registry.Record{
			ID:        docID,
			Filename:  filename,
			Category:  category,
			SizeBytes: int64(len(content)),
			Status:    registry.StatusProcessing,
		}
		if err := i.registry.Upsert(ctx, rec); err != nil {
			return nil, fmt.Errorf("register upload: %w", err)
		}
	}

	text, err := i.extractor.ExtractBytes(content, ext)
	if err != nil {
		i.markError(ctx, docID, filename, category, int64(len(content)), err)
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	return i.index(ctx, docID, filename, category, int64(len(content)), text)
}

func (i *Ingestor) index(ctx context.Context, docID, filename, category string, size int64, text string) (*Result, error) {
	chunks := i.chunker.Chunk(text)
	if len(chunks) == 0 {
		err := fmt.Errorf("document %s has no extractable text", filename)
		i.markError(ctx, docID, filename, category, size, err)
		return nil, err
	}

	chunkIDs, err := i.store.AddChunks(ctx, chunks, docID, filename, category)
	if err != nil {
		i.markError(ctx, docID, filename, category, size, err)
		return nil, fmt.Errorf("index %s: %w", filename, err)
	}
	if err := i.store.Persist(); err != nil {
		return nil, fmt.Errorf("persist store: %w", err)
	}

	if i.registry != nil {
		rec := &registry.Record{
			ID:         docID,
			Filename:   filename,
			Category:   category,
			SizeBytes:  size,
			ChunkCount: len(chunkIDs),
			Status:     registry.StatusProcessed,
		}
		if err := i.registry.Upsert(ctx, rec); err != nil {
			return nil, fmt.Errorf("update registry: %w", err)
		}
	}

	if i.logger != nil {
		i.logger.Info("document ingested",
			zap.String("document_id", docID),
			zap.String("filename", filename),
			zap.Int("chunks", len(chunkIDs)),
		)
	}
	return &Result{DocumentID: docID, Filename: filename, ChunkCount: len(chunkIDs)}, nil
}

// markError records a failed ingestion in the registry. Registry failures at
// this point are logged, not returned; the original error matters more.
func (i *Ingestor) markError(ctx context.Context, docID, filename, category string, size int64, cause error) {
	if i.registry == nil {
		return
	}
	rec := &registry.Record{
		ID:        docID,
		Filename:  filename,
		Category:  category,
		SizeBytes: size,
		Status:    registry.StatusError,
		Error:     cause.Error(),
	}
	if err := i.registry.Upsert(ctx, rec); err != nil && i.logger != nil {
		i.logger.Warn("registry update failed", zap.String("document_id", docID), zap.Error(err))
	}
}

// DeleteDocument removes a document from the vector store and the registry.
// Returns whether the vector store held the document.
func (i *Ingestor) DeleteDocument(ctx context.Context, docID string) (bool, error) {
	existed, err := i.store.DeleteDocument(docID)
	if err != nil {
		return false, err
	}
	if existed {
		if err := i.store.Persist(); err != nil {
			return existed, fmt.Errorf("persist store: %w", err)
		}
	}
	if i.registry != nil {
		if err := i.registry.Delete(ctx, docID); err != nil {
			return existed, fmt.Errorf("delete from registry: %w", err)
		}
	}
	if i.logger != nil && existed {
		i.logger.Info("document deleted", zap.String("document_id", docID))
	}
	return existed, nil
}

// IngestDir walks root and ingests every supported file. Failures on a single
// file are logged and skipped so one bad PDF does not abort the corpus load.
func (i *Ingestor) IngestDir(ctx context.Context, root string) (int, error) {
	count := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !i.extractor.Supported(filepath.Ext(path)) {
			return nil
		}
		if _, err := i.IngestFile(ctx, path, ""); err != nil {
			if i.logger != nil {
				i.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
			}
			return nil
		}
		count++
		return nil
	})
	return count, err
}
