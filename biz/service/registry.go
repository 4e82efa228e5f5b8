package service

import (
	"sync"
	"time"

	custerror "github.com/polycast/relay/internal/error"
	"github.com/polycast/relay/models/rest"
)

// Session is one user's active multi-destination broadcast. It is exclusively
// owned by the registry from Register until Unregister.
type Session struct {
	SessionId string
	UserId    string
	StartTime time.Time
	Title     string

	pipelines []*EncoderPipeline
	relay     *IngestRelay
}

func (s *Session) Relay() *IngestRelay {
	return s.relay
}

func (s *Session) Pipelines() []*EncoderPipeline {
	return s.pipelines
}

// DestinationStatuses reports every destination in the order it was supplied
// at session start.
func (s *Session) DestinationStatuses() []rest.DestinationStatus {
	statuses := make([]rest.DestinationStatus, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		statuses = append(statuses, p.DestinationStatus())
	}
	return statuses
}

// SessionRegistry is the single source of truth for "is this user currently
// streaming". At most one session exists per user at any instant.
type SessionRegistry interface {
	Register(userId string, session *Session) error
	Lookup(userId string) (*Session, bool)
	Unregister(userId string) (*Session, error)
	Snapshot() []*Session
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry() SessionRegistry {
	return &sessionRegistry{
		sessions: map[string]*Session{},
	}
}

// Register is an atomic check-and-insert: concurrent calls for the same user
// cannot both succeed.
func (r *sessionRegistry) Register(userId string, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[userId]; exists {
		return custerror.FormatAlreadyExists("user %s already has an active session", userId)
	}
	r.sessions[userId] = session
	return nil
}

func (r *sessionRegistry) Lookup(userId string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, found := r.sessions[userId]
	return session, found
}

// Unregister removes and returns the entry, so exactly one caller ever owns
// the teardown of a given session.
func (r *sessionRegistry) Unregister(userId string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, found := r.sessions[userId]
	if !found {
		return nil, custerror.FormatNotFound("user %s has no active session", userId)
	}
	delete(r.sessions, userId)
	return session, nil
}

func (r *sessionRegistry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}
