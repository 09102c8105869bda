package server

import (
	"net"
	"time"
)

// UDPSocket defines the socket operations the server needs.
// *net.UDPConn satisfies it; tests substitute an in-memory socket.
type UDPSocket interface {
	// ReadFromUDP reads a UDP packet from the socket.
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)

	// WriteToUDP sends a UDP packet to addr.
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)

	// SetReadDeadline sets the deadline for future Read calls.
	SetReadDeadline(t time.Time) error

	// Close closes the socket.
	Close() error

	// LocalAddr returns the local network address.
	LocalAddr() net.Addr
}

// UDPSocketFactory defines an interface for creating UDP sockets.
type UDPSocketFactory interface {
	// ListenUDP creates and returns a new UDP socket.
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory implements UDPSocketFactory using net.ListenUDP.
type RealUDPSocketFactory struct{}

// ListenUDP creates a new UDP socket.
func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
