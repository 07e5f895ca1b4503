// Package session stores conversation sessions with durable JSON persistence.
// Every mutation is written to disk before it returns, so a crash never loses
// an acknowledged message.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hoanvu/ragserve/internal/models"
	"github.com/hoanvu/ragserve/pkg/utils"
)

// titleMaxRunes caps auto-generated titles at a display-friendly length.
const titleMaxRunes = 50

// placeholderPrefix starts every default title; a title that still carries it
// is replaced by the session's first user message.
const placeholderPrefix = "Chat Session "

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = fmt.Errorf("session not found")

// snapshot is the on-disk layout. Sessions are a flat list; order on disk is
// unspecified and re-sorted on load.
type snapshot struct {
	Sessions    []*models.Session `json:"sessions"`
	LastUpdated time.Time         `json:"last_updated"`
	Version     string            `json:"version"`
}

// Store keeps sessions in memory and mirrors every change to a JSON file.
// Mutations serialize on a single write lock; reads take the read lock only,
// so a read between two writes may observe the intermediate state.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	path     string
	logger   *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets a logger for session lifecycle events.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a session store backed by the JSON file at path. A missing
// file starts the store empty; a present file is loaded eagerly so the first
// read already sees prior sessions.
func NewStore(path string, opts ...StoreOption) (*Store, error) {
	s := &Store{
		sessions: make(map[string]*models.Session),
		path:     path,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read sessions file: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode sessions file: %w", err)
	}
	for _, sess := range snap.Sessions {
		s.sessions[sess.SessionID] = sess
	}
	if s.logger != nil {
		s.logger.Info("sessions loaded", zap.Int("count", len(s.sessions)))
	}
	return nil
}

// persist writes the whole store via temp-file-then-rename. Callers hold the
// write lock.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}
	snap := snapshot{
		Sessions:    make([]*models.Session, 0, len(s.sessions)),
		LastUpdated: time.Now().UTC(),
		Version:     "1.0",
	}
	for _, sess := range s.sessions {
		snap.Sessions = append(snap.Sessions, sess)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode sessions: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename sessions file: %w", err)
	}
	return nil
}

// Create makes a new session under a fresh UUID. An empty title gets the
// placeholder "Chat Session <id[:8]>", which the session's first user message
// later replaces; a caller-supplied title is kept as-is.
func (s *Store) Create(title string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := uuid.New().String()
	if title == "" {
		title = placeholderPrefix + sessionID[:8]
	}
	now := time.Now().UTC()
	sess := &models.Session{
		SessionID: sessionID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []models.Message{},
		Metadata:  map[string]interface{}{},
	}
	s.sessions[sessionID] = sess
	if err := s.persist(); err != nil {
		delete(s.sessions, sessionID)
		return nil, err
	}
	if s.logger != nil {
		s.logger.Debug("session created", zap.String("session_id", sessionID))
	}
	return copySession(sess), nil
}

// AppendMessage adds a message to the session, or returns ErrSessionNotFound
// for an unknown id. When the session's very first message is a user message
// and the title is still the placeholder, the title becomes the content
// truncated to 50 runes. Persisted before returning.
func (s *Store) AppendMessage(sessionID, role, content string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	if role == models.RoleUser && len(sess.Messages) == 0 && strings.HasPrefix(sess.Title, placeholderPrefix) {
		sess.Title = utils.Truncate(content, titleMaxRunes)
	}
	sess.Messages = append(sess.Messages, models.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	sess.UpdatedAt = time.Now().UTC()

	if err := s.persist(); err != nil {
		return nil, err
	}
	return copySession(sess), nil
}

// Get returns a copy of the session, or ErrSessionNotFound.
func (s *Store) Get(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(sess), nil
}

// Messages returns the last limit messages of the session in chronological
// order. limit <= 0 returns all messages. Unknown sessions yield an empty
// slice, not an error, so a fresh chat can ask for history unconditionally.
func (s *Store) Messages(sessionID string, limit int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return []models.Message{}
	}
	msgs := sess.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// List returns copies of all sessions, most recently updated first.
func (s *Store) List() []*models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, copySession(sess))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Delete removes a session. Unknown ids return (false, nil).
func (s *Store) Delete(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	if err := s.persist(); err != nil {
		s.sessions[sessionID] = sess
		return false, err
	}
	if s.logger != nil {
		s.logger.Debug("session deleted", zap.String("session_id", sessionID))
	}
	return true, nil
}

// UpdateMetadata merges entries into the session's metadata map.
func (s *Store) UpdateMetadata(sessionID string, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.Metadata == nil {
		sess.Metadata = make(map[string]interface{})
	}
	for k, v := range metadata {
		sess.Metadata[k] = v
	}
	sess.UpdatedAt = time.Now().UTC()
	return s.persist()
}

// ClearAll removes every session and persists the empty state.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*models.Session)
	return s.persist()
}

// Count returns the number of sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func copySession(sess *models.Session) *models.Session {
	out := *sess
	out.Messages = make([]models.Message, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	if sess.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(sess.Metadata))
		for k, v := range sess.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
