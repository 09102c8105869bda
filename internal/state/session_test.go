package state

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acudp-mock/internal/timeutil"
)

func udpAddr(t *testing.T, s string) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", s)
	require.NoError(t, err)
	return addr
}

func TestNewSessionIsEmpty(t *testing.T) {
	s := NewSession(nil)

	assert.False(t, s.HasSubscriber())
	_, ok := s.Subscriber()
	assert.False(t, ok)
}

func TestRegisterSubscriber(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession(timeutil.NewMockClock(at))
	addr := udpAddr(t, "127.0.0.1:40000")

	sub := s.RegisterSubscriber(addr)

	assert.True(t, s.HasSubscriber())
	assert.Equal(t, addr.String(), sub.Addr.String())
	assert.NotEqual(t, uuid.Nil, sub.SessionID)
	assert.Equal(t, at, sub.RegisteredAt)

	got, ok := s.Subscriber()
	require.True(t, ok)
	assert.Equal(t, sub.SessionID, got.SessionID)
	assert.Equal(t, addr.String(), got.Addr.String())
}

func TestRegisterSubscriberLastWriterWins(t *testing.T) {
	s := NewSession(nil)

	first := s.RegisterSubscriber(udpAddr(t, "127.0.0.1:40000"))
	second := s.RegisterSubscriber(udpAddr(t, "127.0.0.1:40001"))

	got, ok := s.Subscriber()
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:40001", got.Addr.String())
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, second.SessionID, got.SessionID)
}

func TestRegisterSubscriberSameAddressKeepsSession(t *testing.T) {
	s := NewSession(nil)

	first := s.RegisterSubscriber(udpAddr(t, "127.0.0.1:40000"))
	again := s.RegisterSubscriber(udpAddr(t, "127.0.0.1:40000"))

	assert.Equal(t, first.SessionID, again.SessionID)
}

func TestSubscriberReturnsCopy(t *testing.T) {
	s := NewSession(nil)
	addr := udpAddr(t, "127.0.0.1:40000")
	s.RegisterSubscriber(addr)

	// Mutating the caller's address must not move the subscriber.
	addr.Port = 1

	got, _ := s.Subscriber()
	got.Addr.Port = 2

	again, _ := s.Subscriber()
	assert.Equal(t, 40000, again.Addr.Port)
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := NewSession(nil)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(port int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.RegisterSubscriber(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
			}
		}(41000 + i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if sub, ok := s.Subscriber(); ok && sub.Addr == nil {
					t.Error("registered subscriber without address")
				}
			}
		}()
	}

	wg.Wait()
	assert.True(t, s.HasSubscriber())
}
