package session

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/catalog"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minSweepInterval = time.Second

type entry struct {
	session   *Session
	expiresAt time.Time
}

// Store keeps the open page sessions in memory. Sessions expire after ttl
// without access; expired sessions are closed, which releases their camera.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	catalog  catalog.Repository
	deps     Deps
	logger   *zap.Logger
	now      func() time.Time
}

func NewStore(repo catalog.Repository, deps Deps, ttl time.Duration) *Store {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		catalog:  repo,
		deps:     deps,
		logger:   logger.Named("session"),
		now:      time.Now,
	}
}

// Create loads the catalog and opens a fresh session.
func (st *Store) Create(ctx context.Context) (*Session, error) {
	snap, err := st.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	s, err := New(id, snap, st.deps)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.sessions[id] = &entry{session: s, expiresAt: st.now().Add(st.ttl)}
	st.mu.Unlock()
	st.logger.Debug("session created", zap.String("session", id))
	return s, nil
}

// Get returns a live session and extends its expiry.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	e, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	now := st.now()
	if now.After(e.expiresAt) {
		delete(st.sessions, id)
		st.mu.Unlock()
		e.session.Close()
		return nil, domain.ErrNotFound
	}
	e.expiresAt = now.Add(st.ttl)
	st.mu.Unlock()
	return e.session, nil
}

// Delete closes and forgets a session.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	e, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		e.session.Close()
	}
	return ok
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep closes every expired session and returns how many were removed.
func (st *Store) Sweep() int {
	now := st.now()
	var expired []*Session
	st.mu.Lock()
	for id, e := range st.sessions {
		if now.After(e.expiresAt) {
			expired = append(expired, e.session)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		st.logger.Info("expired sessions closed", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then closes all sessions.
func (st *Store) Run(ctx context.Context) {
	interval := st.ttl / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			st.Close()
			return
		case <-ticker.C:
			st.Sweep()
		}
	}
}

// Close closes every session.
func (st *Store) Close() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*entry)
	st.mu.Unlock()
	for _, e := range all {
		e.session.Close()
	}
}
