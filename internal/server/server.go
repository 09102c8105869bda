package server

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acudp-mock/internal/config"
	"github.com/acudp-mock/internal/protocol"
	"github.com/acudp-mock/internal/state"
	"github.com/acudp-mock/internal/timeutil"
	"github.com/acudp-mock/internal/waveform"
)

// ErrBind wraps the socket error when the listener cannot bind.
var ErrBind = errors.New("udp bind failed")

// readPollInterval bounds how long Serve blocks before checking for Close.
const readPollInterval = 500 * time.Millisecond

// sendFailureLogEvery limits send failure logging at 20 Hz to one line per
// 100 consecutive failures after the first.
const sendFailureLogEvery = 100

// Server speaks the handshake/subscribe protocol over UDP and streams
// telemetry frames to the current subscriber
type Server struct {
	config    *config.Config
	session   *state.Session
	generator *waveform.Generator
	clock     timeutil.Clock
	sockets   UDPSocketFactory
	task      *Task

	mu           sync.Mutex
	conn         UDPSocket
	simTime      float64
	sendFailures int
	failingID    uuid.UUID

	stopChan chan struct{}
}

// NewServer creates a new telemetry server
func NewServer(cfg *config.Config, session *state.Session) *Server {
	s := &Server{
		config:    cfg,
		session:   session,
		generator: waveform.NewGenerator(cfg.Track),
		clock:     timeutil.RealClock{},
		sockets:   RealUDPSocketFactory{},
		stopChan:  make(chan struct{}),
	}
	s.task = NewTask(s.clock, cfg.Stream.Interval(), s.Step)
	return s
}

// setClock replaces the tick source. Must be called before the first subscribe.
func (s *Server) setClock(clock timeutil.Clock) {
	s.clock = clock
	s.task = NewTask(clock, s.config.Stream.Interval(), s.Step)
}

// Listen binds the UDP socket at the configured address
func (s *Server) Listen() error {
	addr := s.config.Network.UDP.Address()
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", ErrBind, addr, err)
	}

	conn, err := s.sockets.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBind, addr, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	log.Printf("Telemetry server listening on %s", conn.LocalAddr())
	return nil
}

// ListenAndServe binds the socket and handles datagrams until Close
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve reads datagrams until Close. Listen must have succeeded.
func (s *Server) Serve() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("server is not listening")
	}

	buf := make([]byte, s.config.Network.UDP.ReadBufferBytes)
	for {
		select {
		case <-s.stopChan:
			return nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(readPollInterval)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("set read deadline: %w", err)
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				continue
			case errors.Is(err, net.ErrClosed):
				return nil
			default:
				log.Printf("Failed to read datagram: %v", err)
				continue
			}
		}

		s.handlePacket(buf[:n], addr)
	}
}

// handlePacket dispatches one inbound datagram. Short packets and unknown
// operations are dropped without a reply.
func (s *Server) handlePacket(data []byte, addr *net.UDPAddr) {
	header, err := protocol.DecodeHeader(data)
	if err != nil {
		return
	}

	switch header.OperationID {
	case protocol.OpHandshake:
		s.handleHandshake(header, addr)
	case protocol.OpSubscribe:
		s.handleSubscribe(header, addr)
	}
}

func (s *Server) handleHandshake(header protocol.Header, addr *net.UDPAddr) {
	log.Printf("Handshake from %s: identifier=%d, version=%d", addr, header.Identifier, header.Version)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	if _, err := conn.WriteToUDP(protocol.EncodeHandshakeAck(), addr); err != nil {
		log.Printf("Failed to send handshake reply to %s: %v", addr, err)
	}
}

func (s *Server) handleSubscribe(header protocol.Header, addr *net.UDPAddr) {
	previous, hadPrevious := s.session.Subscriber()
	sub := s.session.RegisterSubscriber(addr)

	if hadPrevious && previous.SessionID != sub.SessionID {
		log.Printf("Subscriber changed from %s to %s: session=%s", previous.Addr, sub.Addr, sub.SessionID)
	} else {
		log.Printf("Subscribe from %s: identifier=%d, version=%d, session=%s",
			addr, header.Identifier, header.Version, sub.SessionID)
	}

	if s.task.Start() {
		log.Printf("Streaming telemetry every %v", s.config.Stream.Interval())
	}
}

// Step runs one emission tick: advance simulated time, sample, encode and
// send to the subscriber. Without a subscriber it does nothing.
func (s *Server) Step() {
	sub, ok := s.session.Subscriber()
	if !ok {
		return
	}

	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return
	}
	s.simTime += s.config.Stream.StepSec
	t := s.simTime
	s.mu.Unlock()

	frame := protocol.EncodeTelemetryFrame(s.generator.Sample(t))
	_, err := conn.WriteToUDP(frame, sub.Addr)
	s.recordSend(sub, err)
}

func (s *Server) recordSend(sub state.Subscriber, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.sendFailures = 0
		return
	}

	if s.failingID != sub.SessionID {
		s.failingID = sub.SessionID
		s.sendFailures = 0
	}
	if s.sendFailures%sendFailureLogEvery == 0 {
		log.Printf("Failed to send telemetry to %s (failure %d): %v", sub.Addr, s.sendFailures+1, err)
	}
	s.sendFailures++
}

// Streaming reports whether the emission task is running
func (s *Server) Streaming() bool {
	return s.task.Running()
}

// SimTime returns the simulated seconds emitted so far
func (s *Server) SimTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simTime
}

// LocalAddr returns the bound address, or nil before Listen
func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Close stops streaming and closes the socket
func (s *Server) Close() error {
	s.mu.Lock()
	select {
	case <-s.stopChan:
		// Already closed
		s.mu.Unlock()
		return nil
	default:
		close(s.stopChan)
	}
	conn := s.conn
	s.mu.Unlock()

	// Not under mu: Stop waits for an in-flight Step, which takes mu.
	s.task.Stop()

	if conn != nil {
		log.Printf("Telemetry server on %s stopped", conn.LocalAddr())
		return conn.Close()
	}
	return nil
}
