package models

import "fmt"

// ChatRequest is a chat question with optional retrieval filters and session.
type ChatRequest struct {
	Question    string `json:"question"`
	DocumentID  string `json:"document_id,omitempty"`
	Category    string `json:"category,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	TopK        int    `json:"top_k,omitempty"`
	MemoryLimit int    `json:"memory_limit,omitempty"`
}

// Validate checks the question and applies limit defaults.
func (r *ChatRequest) Validate() error {
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if r.TopK <= 0 {
		r.TopK = 5
	}
	if r.TopK > 50 {
		r.TopK = 50
	}
	if r.MemoryLimit <= 0 {
		r.MemoryLimit = 5
	}
	return nil
}

// SourceRef is a retrieved chunk reference returned with a chat answer.
// Content is a preview, not the full chunk.
type SourceRef struct {
	ChunkID         string  `json:"chunk_id"`
	DocumentID      string  `json:"document_id"`
	Filename        string  `json:"filename"`
	Content         string  `json:"content"`
	Ordinal         int     `json:"chunk_index"`
	SimilarityScore float64 `json:"similarity_score"`
}

// ChatResponse is the answer to a chat request with its sources.
type ChatResponse struct {
	Response       string      `json:"response"`
	Sources        []SourceRef `json:"sources"`
	ProcessingTime float64     `json:"processing_time"`
	Question       string      `json:"question"`
	DocumentID     string      `json:"document_id,omitempty"`
	SessionID      string      `json:"session_id,omitempty"`
}

// SearchRequest is a standalone retrieval request (no generation).
type SearchRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Category   string `json:"category,omitempty"`
}

// Validate checks the query and applies limit defaults.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.TopK <= 0 {
		r.TopK = 5
	}
	if r.TopK > 100 {
		r.TopK = 100
	}
	return nil
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []ScoredChunk `json:"results"`
	Total     int           `json:"total"`
	Query     string        `json:"query"`
	QueryTime int64         `json:"query_time_ms"`
}
