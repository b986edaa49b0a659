package session

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openpalette/quill/internal/models"
)

// Persister is the durable storage behind the in-memory collection.
type Persister interface {
	LoadSessions() ([]models.Session, error)
	SaveSessions([]models.Session) error
}

// Store owns the ordered session collection. All mutation goes through
// Update, which replaces the collection wholesale, re-sorts it and
// persists the result. Persistence is best-effort: failures are logged
// and swallowed so the UI stays usable without durable storage.
type Store struct {
	mu        sync.Mutex
	sessions  []models.Session
	persister Persister
	logger    *zap.Logger
}

// NewStore loads the persisted collection. Malformed or unreadable data
// yields an empty collection and a log line, never an error.
func NewStore(persister Persister, logger *zap.Logger) *Store {
	s := &Store{persister: persister, logger: logger}
	if persister == nil {
		return s
	}

	sessions, err := persister.LoadSessions()
	if err != nil {
		logger.Warn("failed to load persisted sessions, starting empty", zap.Error(err))
		return s
	}
	sortSessions(sessions)
	s.sessions = sessions
	return s
}

// NewID returns a collision-resistant identifier for sessions and messages.
func NewID() string {
	return uuid.NewString()
}

// List returns a snapshot of the collection in display order.
func (s *Store) List() []models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSessions(s.sessions)
}

// Get returns a snapshot of one session.
func (s *Store) Get(id string) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			return cloneSession(sess), true
		}
	}
	return models.Session{}, false
}

// Update applies fn to a snapshot of the collection and replaces the
// collection with its result. The result is re-sorted and persisted.
func (s *Store) Update(fn func([]models.Session) []models.Session) {
	s.mu.Lock()
	next := fn(cloneSessions(s.sessions))
	sortSessions(next)
	s.sessions = next
	snapshot := cloneSessions(next)
	s.mu.Unlock()

	s.persist(snapshot)
}

// Upsert replaces the session with the same ID, or inserts it.
func (s *Store) Upsert(sess models.Session) {
	s.Update(func(sessions []models.Session) []models.Session {
		for i := range sessions {
			if sessions[i].ID == sess.ID {
				sessions[i] = sess
				return sessions
			}
		}
		return append(sessions, sess)
	})
}

// Delete removes a session by ID.
func (s *Store) Delete(id string) {
	s.Update(func(sessions []models.Session) []models.Session {
		out := sessions[:0]
		for _, sess := range sessions {
			if sess.ID != id {
				out = append(out, sess)
			}
		}
		return out
	})
}

// Rename sets a session's display title.
func (s *Store) Rename(id, title string) {
	s.Update(func(sessions []models.Session) []models.Session {
		for i := range sessions {
			if sessions[i].ID == id {
				sessions[i].Title = title
			}
		}
		return sessions
	})
}

// SetPinned moves a session between the pinned and recent groups.
func (s *Store) SetPinned(id string, pinned bool) {
	s.Update(func(sessions []models.Session) []models.Session {
		for i := range sessions {
			if sessions[i].ID == id {
				sessions[i].Pinned = pinned
			}
		}
		return sessions
	})
}

func (s *Store) persist(sessions []models.Session) {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveSessions(sessions); err != nil {
		s.logger.Warn("failed to persist sessions", zap.Error(err))
	}
}

// sortSessions orders pinned sessions first, alphabetically by title;
// unpinned sessions follow, most recently updated first.
func sortSessions(sessions []models.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if a.Pinned {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
}

func cloneSessions(sessions []models.Session) []models.Session {
	out := make([]models.Session, len(sessions))
	for i, sess := range sessions {
		out[i] = cloneSession(sess)
	}
	return out
}

func cloneSession(sess models.Session) models.Session {
	sess.Messages = append([]models.Message(nil), sess.Messages...)
	return sess
}
