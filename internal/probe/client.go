// Package probe is a minimal consumer of the telemetry stream. It performs
// the same handshake and subscribe sequence as the visualizer and decodes
// car-info frames, which makes it useful both as a smoke test against a
// running mock and as a test driver.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/acudp-mock/internal/model"
	"github.com/acudp-mock/internal/protocol"
)

// ErrNoReply is returned when the server does not answer a handshake in time.
var ErrNoReply = errors.New("no handshake reply")

// Options configures the header fields and timeouts a Client uses
type Options struct {
	Identifier       int32
	Version          int32
	HandshakeTimeout time.Duration
}

// DefaultOptions matches the visualizer: identifier 1, version 1, 1s handshake wait.
func DefaultOptions() Options {
	return Options{Identifier: 1, Version: 1, HandshakeTimeout: time.Second}
}

// Client is a connected UDP consumer
type Client struct {
	conn *net.UDPConn
	opts Options
	buf  []byte
}

// Dial connects a client to the server at addr
func Dial(addr string, opts Options) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, opts: opts, buf: make([]byte, 2048)}, nil
}

// Handshake sends operation 0 and waits for any non-empty reply.
func (c *Client) Handshake() error {
	if err := c.send(protocol.OpHandshake); err != nil {
		return err
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.HandshakeTimeout)); err != nil {
		return err
	}
	for {
		n, err := c.conn.Read(c.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return ErrNoReply
			}
			return fmt.Errorf("read handshake reply: %w", err)
		}
		if n > 0 {
			return nil
		}
	}
}

// Subscribe sends operation 1. Frames follow asynchronously.
func (c *Client) Subscribe() error {
	return c.send(protocol.OpSubscribe)
}

// Next returns the next car-info frame, skipping anything else, until ctx
// is done.
func (c *Client) Next(ctx context.Context) (model.TelemetrySample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return model.TelemetrySample{}, err
		}

		deadline := time.Now().Add(100 * time.Millisecond)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return model.TelemetrySample{}, err
		}

		n, err := c.conn.Read(c.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return model.TelemetrySample{}, fmt.Errorf("read frame: %w", err)
		}

		sample, err := protocol.DecodeTelemetryFrame(c.buf[:n])
		if err != nil {
			continue
		}
		return sample, nil
	}
}

// Close releases the socket
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(op protocol.Operation) error {
	h := protocol.Header{Identifier: c.opts.Identifier, Version: c.opts.Version, OperationID: op}
	if _, err := c.conn.Write(protocol.EncodeHeader(h)); err != nil {
		return fmt.Errorf("send %s: %w", op, err)
	}
	return nil
}
