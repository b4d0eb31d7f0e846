package session

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// BaseSessionManager 以连接 ID 为键，在内存中保存在线会话。
type BaseSessionManager struct {
	mu       sync.RWMutex
	sessions map[uint64]Session
	limit    int
	closed   bool
}

var _ SessionManager = (*BaseSessionManager)(nil)

// NewBaseSessionManager 创建管理器，limit 为同时在线的连接上限，0 表示不限。
func NewBaseSessionManager(limit int) *BaseSessionManager {
	return &BaseSessionManager{
		sessions: make(map[uint64]Session),
		limit:    limit,
	}
}

func (m *BaseSessionManager) Register(sess Session) error {
	if sess == nil {
		return errors.New("session: session is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return ErrManagerClosed
	case m.full():
		return errors.Wrapf(ErrLimitReached, "limit %d", m.limit)
	}
	if _, ok := m.sessions[sess.ID()]; ok {
		return errors.Newf("session: connection #%d already registered", sess.ID())
	}
	m.sessions[sess.ID()] = sess
	return nil
}

func (m *BaseSessionManager) Get(id uint64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

func (m *BaseSessionManager) Unregister(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

func (m *BaseSessionManager) Full() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.full()
}

func (m *BaseSessionManager) full() bool {
	return m.limit > 0 && len(m.sessions) >= m.limit
}

func (m *BaseSessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll 在锁外关闭会话，Close 触发的注销不会与之互相等待。
func (m *BaseSessionManager) CloseAll() int {
	m.mu.Lock()
	m.closed = true
	open := make([]Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		open = append(open, sess)
	}
	m.mu.Unlock()

	for _, sess := range open {
		_ = sess.Close()
	}
	return len(open)
}
