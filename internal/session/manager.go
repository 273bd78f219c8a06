package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gsarrco/MuoVErsi/internal/service"
)

// Observer receives per-turn metrics; nil disables it.
type Observer interface {
	TurnObserve(event string, d time.Duration)
	TurnError(kind string)
	SessionsSet(n int)
}

// Manager owns every chat's Session and serializes turns per chat.
// Turns of different chats run concurrently. A session is dropped as soon
// as it is back to idle, or by Prune once unused for longer than the TTL.
type Manager struct {
	nav        *Navigator
	obs        Observer
	shownPages int
	ttl        time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[int64]*entry // chatID -> session
}

type entry struct {
	s        *Session
	refs     int // turns holding or waiting for s
	lastUsed time.Time
}

// NewManager builds a Manager. A zero ttl keeps abandoned sessions until
// they return to idle.
func NewManager(nav *Navigator, shownPages int, ttl time.Duration, obs Observer) *Manager {
	return &Manager{
		nav:        nav,
		obs:        obs,
		shownPages: shownPages,
		ttl:        ttl,
		now:        time.Now,
		sessions:   make(map[int64]*entry),
	}
}

func (m *Manager) acquire(chatID int64, create bool) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[chatID]
	if !ok {
		if !create {
			return nil
		}
		e = &entry{s: newSession(m.shownPages)}
		m.sessions[chatID] = e
		m.sessionsChanged()
	}
	e.refs++
	e.lastUsed = m.now()
	return e
}

// release must be called without holding e.s.mu.
func (m *Manager) release(chatID int64, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs > 0 {
		return
	}
	// no turn holds e.s.mu while refs is zero
	e.s.mu.Lock()
	idle := e.s.step == StepIdle
	e.s.mu.Unlock()
	if idle && m.sessions[chatID] == e {
		delete(m.sessions, chatID)
		m.sessionsChanged()
	}
}

func (m *Manager) sessionsChanged() {
	if m.obs != nil {
		m.obs.SessionsSet(len(m.sessions))
	}
}

// Handle runs one turn for chatID and returns what to send back.
func (m *Manager) Handle(ctx context.Context, chatID int64, ev Event) (effects []Effect) {
	start := time.Now()
	e := m.acquire(chatID, true)
	defer m.release(chatID, e)
	s := e.s
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.step
	defer func() {
		if r := recover(); r != nil {
			log.Printf("turn panic chat=%d event=%s: %v", chatID, ev.Kind(), r)
			effects = []Effect{SendText{Text: msgUnavailable}}
			if m.obs != nil {
				m.obs.TurnError("panic")
			}
		}
		if m.obs != nil {
			m.obs.TurnObserve(ev.Kind(), time.Since(start))
		}
	}()

	effects, err := m.nav.Turn(ctx, s, ev)
	if err != nil {
		log.Printf("turn chat=%d event=%s step=%s: %v", chatID, ev.Kind(), from, err)
		if m.obs != nil {
			m.obs.TurnError(ErrorKind(err))
		}
	}
	log.Printf("turn chat=%d event=%s step=%s->%s effects=%d", chatID, ev.Kind(), from, s.step, len(effects))
	return effects
}

// Snapshot reports a chat's step, mode and back target. A chat without a
// session is idle.
func (m *Manager) Snapshot(chatID int64) (Step, service.Mode, string) {
	e := m.acquire(chatID, false)
	if e == nil {
		return StepIdle, 0, ""
	}
	defer m.release(chatID, e)
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.s.step, e.s.mode, e.s.current
}

// Len is the number of sessions in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune drops sessions unused for longer than the TTL and returns how many.
func (m *Manager) Prune() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.ttl)
	n := 0
	for chatID, e := range m.sessions {
		if e.refs == 0 && e.lastUsed.Before(cutoff) {
			delete(m.sessions, chatID)
			n++
		}
	}
	if n > 0 {
		m.sessionsChanged()
	}
	return n
}

// StartPruner runs Prune periodically until ctx is done.
func (m *Manager) StartPruner(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}
	every := m.ttl / 4
	if every < time.Minute {
		every = time.Minute
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Prune(); n > 0 {
					log.Printf("pruned %d idle sessions", n)
				}
			}
		}
	}()
}
