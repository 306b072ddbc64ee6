package decisionlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/promptpilot/ai-router/internal/types"
)

// Entry is one routing decision together with its execution outcome. Entries
// are written after the request finishes so the attempt list is complete.
type Entry struct {
	RequestID        string                   `json:"requestId"`
	Timestamp        time.Time                `json:"timestamp"`
	Mode             types.Mode               `json:"mode"`
	Intent           types.Intent             `json:"intent"`
	ComplexityScore  float64                  `json:"complexityScore"`
	Provider         string                   `json:"provider"`
	Model            string                   `json:"model"`
	Reason           string                   `json:"reason"`
	Confidence       float64                  `json:"confidence"`
	EstimatedCostUSD float64                  `json:"estimatedCostUsd"`
	FallbackChain    []string                 `json:"fallbackChain"`
	Attempts         []types.ExecutionAttempt `json:"attempts,omitempty"`
	Succeeded        bool                     `json:"succeeded"`
	FailureReason    types.FailureReason      `json:"failureReason,omitempty"`
	DurationMs       int64                    `json:"durationMs"`
}

// Store persists decision entries. Implementations must be safe for use from
// a single writer goroutine plus concurrent Close.
type Store interface {
	Append(e *Entry) error
	Close() error
}

// FileStore appends entries as newline-delimited JSON. The format is meant
// for offline analysis of routing quality, one object per line.
type FileStore struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

// NewFileStore opens (or creates) the log file for appending.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating decision log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening decision log: %w", err)
	}
	return &FileStore{file: f, w: bufio.NewWriter(f)}, nil
}

func (s *FileStore) Append(e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding decision entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// MemoryStore keeps entries in memory. Used in tests and when no log file is
// configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries []*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Entries returns a copy of everything appended so far.
func (s *MemoryStore) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
