package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hoanvu/ragserve/internal/assembler"
	"github.com/hoanvu/ragserve/internal/gate"
	"github.com/hoanvu/ragserve/internal/models"
	"github.com/hoanvu/ragserve/internal/registry"
	"github.com/hoanvu/ragserve/internal/session"
	"github.com/hoanvu/ragserve/internal/vectorstore"
	"github.com/hoanvu/ragserve/pkg/utils"
)

// sourcePreviewRunes caps the chunk content echoed in chat sources.
const sourcePreviewRunes = 200

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()

	// Off-topic questions are refused before anything is stored.
	if s.config.Chat.TopicGateEnabled() && !gate.InScope(req.Question) {
		s.respondJSON(w, http.StatusOK, models.ChatResponse{
			Response:       gate.RefusalAnswer,
			Sources:        []models.SourceRef{},
			ProcessingTime: time.Since(start).Seconds(),
			Question:       req.Question,
			SessionID:      req.SessionID,
		})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sess, err := s.sessions.Create("")
		if err != nil {
			s.logger.Error("session creation failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "failed to create session")
			return
		}
		sessionID = sess.SessionID
	}
	// History is captured before the question is appended so the context holds
	// only prior turns.
	history := s.sessions.Messages(sessionID, req.MemoryLimit)
	if _, err := s.sessions.AppendMessage(sessionID, models.RoleUser, req.Question); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			s.respondError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("append user message failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	chunks, err := s.store.SearchText(r.Context(), req.Question, req.TopK, vectorstore.Filters{
		DocumentID: req.DocumentID,
		Category:   req.Category,
	})
	if err != nil {
		var verr *vectorstore.ValidationError
		if errors.As(err, &verr) {
			s.respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.logger.Error("retrieval failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "retrieval failed")
		return
	}

	contextBlock := assembler.BuildContext(history, chunks)
	answer, err := s.generator.Generate(r.Context(), req.Question, contextBlock)
	if err != nil {
		s.logger.Error("generation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "generation failed")
		return
	}
	if _, err := s.sessions.AppendMessage(sessionID, models.RoleAssistant, answer); err != nil {
		s.logger.Error("append assistant message failed", zap.Error(err))
	}

	s.respondJSON(w, http.StatusOK, models.ChatResponse{
		Response:       answer,
		Sources:        sourceRefs(chunks),
		ProcessingTime: time.Since(start).Seconds(),
		Question:       req.Question,
		DocumentID:     req.DocumentID,
		SessionID:      sessionID,
	})
}

// streamEvent is one SSE payload. Exactly one field is set per event.
type streamEvent struct {
	Content   string             `json:"content,omitempty"`
	Sources   []models.SourceRef `json:"sources,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	Error     string             `json:"error,omitempty"`
	Done      bool               `json:"done,omitempty"`
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	// An unknown caller-supplied session is rejected before any SSE frame.
	if req.SessionID != "" {
		if _, err := s.sessions.Get(req.SessionID); err != nil {
			s.respondError(w, http.StatusNotFound, "session not found")
			return
		}
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(ev streamEvent) {
		data, _ := json.Marshal(ev)
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(data)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	if s.config.Chat.TopicGateEnabled() && !gate.InScope(req.Question) {
		send(streamEvent{Content: gate.RefusalAnswer})
		send(streamEvent{SessionID: req.SessionID, Done: true})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sess, err := s.sessions.Create("")
		if err != nil {
			s.logger.Error("session creation failed", zap.Error(err))
			send(streamEvent{Error: "failed to create session"})
			return
		}
		sessionID = sess.SessionID
	}
	history := s.sessions.Messages(sessionID, req.MemoryLimit)
	if _, err := s.sessions.AppendMessage(sessionID, models.RoleUser, req.Question); err != nil {
		send(streamEvent{Error: "failed to store message"})
		return
	}

	chunks, err := s.store.SearchText(r.Context(), req.Question, req.TopK, vectorstore.Filters{
		DocumentID: req.DocumentID,
		Category:   req.Category,
	})
	if err != nil {
		s.logger.Error("retrieval failed", zap.Error(err))
		send(streamEvent{Error: "retrieval failed"})
		return
	}

	contextBlock := assembler.BuildContext(history, chunks)
	answer, err := s.generator.GenerateStream(r.Context(), req.Question, contextBlock, func(delta string) {
		send(streamEvent{Content: delta})
	})
	if err != nil {
		s.logger.Error("generation failed", zap.Error(err))
		send(streamEvent{Error: "generation failed"})
		return
	}
	if _, err := s.sessions.AppendMessage(sessionID, models.RoleAssistant, answer); err != nil {
		s.logger.Error("append assistant message failed", zap.Error(err))
	}
	send(streamEvent{Sources: sourceRefs(chunks)})
	send(streamEvent{SessionID: sessionID, Done: true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	results, err := s.store.SearchText(r.Context(), req.Query, req.TopK, vectorstore.Filters{
		DocumentID: req.DocumentID,
		Category:   req.Category,
	})
	if err != nil {
		var verr *vectorstore.ValidationError
		if errors.As(err, &verr) {
			s.respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	s.respondJSON(w, http.StatusOK, models.SearchResponse{
		Results:   results,
		Total:     len(results),
		Query:     req.Query,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}
	category := r.FormValue("category")
	if category == "" {
		category = "Uploads"
	}

	res, err := s.ingestor.IngestUpload(r.Context(), content, header.Filename, category)
	if err != nil {
		s.logger.Error("upload ingestion failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.registry != nil {
		recs, err := s.registry.List(r.Context())
		if err != nil {
			s.logger.Error("list documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "failed to list documents")
			return
		}
		if recs == nil {
			recs = []*registry.Record{}
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": recs, "total": len(recs)})
		return
	}
	docs := s.store.Documents()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "total": len(docs)})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existed, err := s.ingestor.DeleteDocument(r.Context(), id)
	if err != nil {
		s.logger.Error("document deletion failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !existed {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	// An empty body is fine; the placeholder title applies.
	_ = json.NewDecoder(r.Body).Decode(&body)
	sess, err := s.sessions.Create(body.Title)
	if err != nil {
		s.logger.Error("session creation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	s.respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions, "total": len(sessions)})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existed, err := s.sessions.Delete(id)
	if err != nil {
		s.logger.Error("session deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	if !existed {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(id); err != nil {
		if err == session.ErrSessionNotFound {
			s.respondError(w, http.StatusNotFound, "session not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	msgs := s.sessions.Messages(id, 0)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs, "total": len(msgs)})
}

func (s *Server) handleClearSessions(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.ClearAll(); err != nil {
		s.logger.Error("clear sessions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to clear sessions")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	resp := map[string]interface{}{
		"vector_store": stats,
		"sessions":     s.sessions.Count(),
		"config": map[string]interface{}{
			"embedding_model":      s.config.Embedding.Model,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"llm_model":            s.config.LLM.Model,
			"chunk_size":           s.config.Ingest.ChunkSize,
			"chunk_overlap":        s.config.Ingest.ChunkOverlap,
			"top_k":                s.config.Chat.TopK,
			"topic_gate":           s.config.Chat.TopicGateEnabled(),
		},
	}
	if s.registry != nil {
		if count, err := s.registry.Count(r.Context()); err == nil {
			resp["registered_documents"] = count
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func sourceRefs(chunks []models.ScoredChunk) []models.SourceRef {
	refs := make([]models.SourceRef, 0, len(chunks))
	for _, c := range chunks {
		refs = append(refs, models.SourceRef{
			ChunkID:         c.ChunkID,
			DocumentID:      c.DocumentID,
			Filename:        c.Filename,
			Content:         utils.Truncate(c.Content, sourcePreviewRunes),
			Ordinal:         c.Ordinal,
			SimilarityScore: c.SimilarityScore,
		})
	}
	return refs
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
