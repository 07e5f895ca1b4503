// Package models defines core data structures for chunks, documents, sessions, and requests.
package models

import "time"

// ChunkRecord is the metadata for one indexed text chunk. Position is the row the
// chunk's vector currently occupies in the similarity index; it is renumbered when
// the index is rebuilt after a document deletion, and is otherwise immutable.
type ChunkRecord struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Ordinal    int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Filename   string    `json:"filename"`
	Category   string    `json:"category,omitempty"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

// DocumentEntry groups the chunks of one ingested document.
type DocumentEntry struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Category   string    `json:"category,omitempty"`
	ChunkIDs   []string  `json:"chunk_ids"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredChunk is a chunk returned from similarity search with its score attached.
// The embedded record is a copy; mutating it does not affect the store.
type ScoredChunk struct {
	ChunkRecord
	SimilarityScore float64 `json:"similarity_score"`
}

// StoreStats summarizes the vector store contents.
type StoreStats struct {
	TotalVectors   int `json:"total_vectors"`
	TotalDocuments int `json:"total_documents"`
	TotalChunks    int `json:"total_chunks"`
	Dimension      int `json:"dimension"`
}
