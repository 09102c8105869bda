package state

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acudp-mock/internal/timeutil"
)

// Subscriber describes the single consumer frames are sent to
type Subscriber struct {
	Addr         *net.UDPAddr
	SessionID    uuid.UUID
	RegisteredAt time.Time
}

// Session holds at most one registered subscriber. The last subscribe wins.
// It is safe for concurrent use by the receive path and the emission task.
type Session struct {
	mu         sync.RWMutex
	clock      timeutil.Clock
	subscriber *Subscriber
}

// NewSession creates an empty session
func NewSession(clock timeutil.Clock) *Session {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Session{clock: clock}
}

// RegisterSubscriber records addr as the current subscriber, replacing any
// previous one. A repeat registration from the same address keeps its
// session id; a different address starts a new session.
func (s *Session) RegisterSubscriber(addr *net.UDPAddr) Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscriber != nil && sameAddr(s.subscriber.Addr, addr) {
		return *s.subscriber
	}

	sub := &Subscriber{
		Addr:         cloneAddr(addr),
		SessionID:    uuid.New(),
		RegisteredAt: s.clock.Now(),
	}
	s.subscriber = sub
	return *sub
}

// HasSubscriber reports whether emission ticks have somewhere to send
func (s *Session) HasSubscriber() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscriber != nil
}

// Subscriber returns a copy of the current subscriber
func (s *Session) Subscriber() (Subscriber, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.subscriber == nil {
		return Subscriber{}, false
	}
	sub := *s.subscriber
	sub.Addr = cloneAddr(sub.Addr)
	return sub, true
}

func sameAddr(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port && a.Zone == b.Zone
}

func cloneAddr(a *net.UDPAddr) *net.UDPAddr {
	return &net.UDPAddr{
		IP:   append(net.IP(nil), a.IP...),
		Port: a.Port,
		Zone: a.Zone,
	}
}
