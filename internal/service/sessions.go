package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/hogar/internal/identity"
	"github.com/mmynk/hogar/internal/ledger"
)

const (
	// DefaultSessionIdleTimeout is how long an unused session stays open.
	DefaultSessionIdleTimeout = 15 * time.Minute

	sessionStartTimeout = 30 * time.Second
)

// SessionManager keeps one live ledger session per signed-in user. Sessions are shared by
// every RPC and stream of that user and closed once nothing has used them for the idle
// timeout.
type SessionManager struct {
	source      ledger.ExpenseSource
	writer      ledger.RecordWriter
	prefs       ledger.Preferences
	partnerFor  func(email string) string
	logger      *slog.Logger
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	closed   bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// sessionEntry is a started or starting session. ready is closed once Start returned;
// sess and err are set before that.
type sessionEntry struct {
	ready    chan struct{}
	sess     *ledger.Session
	err      error
	inUse    int
	lastUsed time.Time
}

// NewSessionManager creates a SessionManager. partnerFor supplies the partner for users
// without a stored preference and may be nil.
func NewSessionManager(source ledger.ExpenseSource, writer ledger.RecordWriter, prefs ledger.Preferences, partnerFor func(string) string, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	if partnerFor == nil {
		partnerFor = func(string) string { return "" }
	}
	return &SessionManager{
		source:      source,
		writer:      writer,
		prefs:       prefs,
		partnerFor:  partnerFor,
		logger:      logger,
		idleTimeout: DefaultSessionIdleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*sessionEntry),
		stop:        make(chan struct{}),
	}
}

// WithIdleTimeout sets how long an unused session stays open.
func (m *SessionManager) WithIdleTimeout(d time.Duration) *SessionManager {
	if d > 0 {
		m.idleTimeout = d
	}
	return m
}

// Acquire returns the user's session, starting one on first use. The caller must call
// release when done with it; a session is never closed for idleness while acquired.
//
// Starting a session waits for its first snapshot. Other users are not blocked by it,
// and concurrent callers for the same user share one start.
func (m *SessionManager) Acquire(ctx context.Context, user identity.User) (*ledger.Session, func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, ledger.ErrSessionClosed
	}
	e, ok := m.sessions[user.UID]
	if ok && e.sess != nil && e.sess.Closed() {
		delete(m.sessions, user.UID)
		ok = false
	}
	starting := !ok
	if starting {
		e = &sessionEntry{ready: make(chan struct{})}
		m.sessions[user.UID] = e
	}
	e.inUse++
	m.mu.Unlock()

	release := func() { m.release(e) }

	if starting {
		m.start(ctx, user, e)
	} else {
		select {
		case <-e.ready:
		case <-ctx.Done():
			release()
			return nil, nil, ctx.Err()
		}
	}

	if e.err != nil {
		release()
		return nil, nil, e.err
	}
	return e.sess, sync.OnceFunc(release), nil
}

// start runs Session.Start outside the manager lock. It is detached from the caller's
// cancellation because other callers may be waiting on the same entry.
func (m *SessionManager) start(ctx context.Context, user identity.User, e *sessionEntry) {
	startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionStartTimeout)
	defer cancel()

	s := ledger.NewSession(user, m.source, m.writer, m.prefs, m.logger)
	err := s.Start(startCtx, m.partnerFor(user.Email))

	m.mu.Lock()
	if err == nil && m.closed {
		err = ledger.ErrSessionClosed
	}
	if err != nil {
		e.err = err
		if m.sessions[user.UID] == e {
			delete(m.sessions, user.UID)
		}
	} else {
		e.sess = s
	}
	close(e.ready)
	m.mu.Unlock()

	if err != nil {
		s.Close()
		m.logger.Error("Failed to start ledger session", "user_id", user.UID, "error", err)
		return
	}
	m.logger.Info("Ledger session started", "user_id", user.UID, "partner", s.Partner())
}

func (m *SessionManager) release(e *sessionEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.inUse--
	e.lastUsed = m.now()
}

// Sweep closes sessions that are closed already or unused for at least the idle
// timeout, and returns how many it removed.
func (m *SessionManager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var idle []*ledger.Session
	for uid, e := range m.sessions {
		if e.sess == nil {
			continue
		}
		if e.sess.Closed() || (e.inUse == 0 && now.Sub(e.lastUsed) >= m.idleTimeout) {
			delete(m.sessions, uid)
			idle = append(idle, e.sess)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		m.logger.Debug("Closed idle ledger sessions", "count", len(idle))
	}
	return len(idle)
}

// Len returns the number of open or starting sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps idle sessions every interval until Close.
func (m *SessionManager) Run(interval time.Duration) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Close ends every session and stops the sweeper. Later Acquire calls fail with
// ledger.ErrSessionClosed.
func (m *SessionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.stop)
	sessions := m.sessions
	m.sessions = make(map[string]*sessionEntry)
	m.mu.Unlock()

	m.wg.Wait()
	for _, e := range sessions {
		if e.sess != nil {
			e.sess.Close()
		}
	}
}
