// Package engine implements the client side of the debuggee's remote
// debugging interface.
//
// The engine speaks a V8-inspector-like protocol: JSON command messages
// with monotonically increasing ids, matching result messages, and
// unsolicited event messages. This package provides:
//   - Transport: Content-Length framed JSON over TCP or pipes
//   - Client: correlation-id command dispatch and the event stream
//   - Value: the tagged runtime value model the adapter consumes
//
// Process bootstrapping (spawning the debuggee, socket lifecycle) is the
// caller's responsibility; the transport only frames an established
// connection.
package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
)

// Message is one engine protocol message. Commands carry ID+Method+Params,
// replies carry ID plus Result or Error, events carry Method+Params with a
// zero ID.
type Message struct {
	ID     int             `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *CommandError   `json:"error,omitempty"`
}

// CommandError is an engine-level command failure.
type CommandError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("engine command failed (%d): %s", e.Code, e.Message)
}

// Transport handles framed communication with the engine.
type Transport struct {
	conn   io.ReadWriteCloser
	reader *bufio.Reader
	writer *bufio.Writer
	mu     sync.Mutex
	seq    int
}

// NewTCPTransport creates a transport connected to a TCP address.
func NewTCPTransport(address string) (*Transport, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine at %s: %w", address, err)
	}
	return NewTransport(conn), nil
}

// NewTransport wraps an established connection.
func NewTransport(conn io.ReadWriteCloser) *Transport {
	return &Transport{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		seq:    1,
	}
}

// NextSeq returns the next command id.
func (t *Transport) NextSeq() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.seq
	t.seq++
	return seq
}

// Send writes one framed message.
func (t *Transport) Send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode engine message: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := fmt.Fprintf(t.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return fmt.Errorf("failed to write engine message header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write engine message: %w", err)
	}
	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush engine message: %w", err)
	}
	return nil
}

// Receive reads one framed message.
func (t *Transport) Receive() (*Message, error) {
	length := -1
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed engine header %q", line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			length, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("malformed Content-Length %q", value)
			}
		}
	}
	if length < 0 {
		return nil, fmt.Errorf("engine message missing Content-Length header")
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(t.reader, data); err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode engine message: %w", err)
	}
	return &msg, nil
}

// Close closes the transport.
func (t *Transport) Close() error {
	return t.conn.Close()
}
