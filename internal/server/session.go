package server

import (
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionInfo is a point-in-time view of one open TCP session, exposed
// through Statistics and the monitoring endpoints.
type SessionInfo struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remote_addr"`
	StartedAt  time.Time `json:"started_at"`
	Frames     uint64    `json:"frames"`
}

// session is the registry entry for one live TCP connection.
type session struct {
	id         string
	conn       net.Conn
	remoteAddr string
	startedAt  time.Time
	frames     atomic.Uint64
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:         s.id,
		RemoteAddr: s.remoteAddr,
		StartedAt:  s.startedAt,
		Frames:     s.frames.Load(),
	}
}

// sessionRegistry tracks live TCP sessions for monitoring and shutdown.
// Sessions register on accept and deregister when their goroutine exits.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*session)}
}

func (r *sessionRegistry) add(conn net.Conn) *session {
	s := &session{
		id:         uuid.NewString(),
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		startedAt:  time.Now(),
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	return s
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// closeAll closes every live session socket. Cancellation uses this to fault
// in-flight reads promptly instead of waiting for their deadlines.
func (r *sessionRegistry) closeAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		_ = s.conn.Close()
	}
}

func (r *sessionRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// snapshot returns the open sessions ordered by start time.
func (r *sessionRegistry) snapshot() []SessionInfo {
	r.mu.RLock()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, s.info())
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}
