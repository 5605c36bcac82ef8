package location

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/models"
)

// Store holds the process-wide "last known location" slot and the
// once-per-session gate. It is constructed once at startup and injected into
// the Resolver; Reset exists so tests never leak state into each other.
//
// Writers follow last-write-wins: a completing resolution must verify it is
// still the authoritative attempt before calling SetLastKnown.
type Store struct {
	mu        sync.RWMutex
	lastKnown *models.ResolvedLocation
	session   *models.ResolvedLocation

	path   string
	logger *zap.Logger
}

// NewStore creates a Store. When path is non-empty the last-known slot is
// loaded from and persisted to that file across restarts.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, logger: logger}
	s.load()
	return s
}

// LastKnown returns a copy of the persisted last-known location, or nil.
func (s *Store) LastKnown() *models.ResolvedLocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastKnown == nil {
		return nil
	}
	loc := *s.lastKnown
	return &loc
}

// SetLastKnown replaces the last-known slot and persists it.
func (s *Store) SetLastKnown(loc models.ResolvedLocation) {
	s.mu.Lock()
	s.lastKnown = &loc
	s.mu.Unlock()
	s.persist(loc)
}

// SessionLocation returns the resolution cached by the once-per-session gate,
// or nil when the gate is open.
func (s *Store) SessionLocation() *models.ResolvedLocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	loc := *s.session
	return &loc
}

// MarkSession closes the once-per-session gate with the given resolution.
func (s *Store) MarkSession(loc models.ResolvedLocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &loc
}

// ClearSession reopens the gate; Refresh uses this to force re-acquisition.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
}

// Reset clears all state, including the persisted slot.
func (s *Store) Reset() {
	s.mu.Lock()
	s.lastKnown = nil
	s.session = nil
	s.mu.Unlock()
	if s.path != "" {
		_ = os.Remove(s.path)
	}
}

func (s *Store) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var loc models.ResolvedLocation
	if err := json.Unmarshal(data, &loc); err != nil {
		s.logger.Warn("Discarding unreadable last-known location file", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.lastKnown = &loc
	s.mu.Unlock()
	s.logger.Info("Loaded last-known location",
		zap.Time("resolved_at", loc.ResolvedAt),
	)
}

func (s *Store) persist(loc models.ResolvedLocation) {
	if s.path == "" {
		return
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn("Failed to create location store directory", zap.Error(err))
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Warn("Failed to persist last-known location", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Warn("Failed to persist last-known location", zap.Error(err))
	}
}

// Age reports how old the last-known value is, or a negative duration when
// the slot is empty.
func (s *Store) Age(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastKnown == nil {
		return -1
	}
	return now.Sub(s.lastKnown.ResolvedAt)
}
