package dapproxy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/google/go-dap"
)

// Transport carries DAP messages to and from an adapter.
type Transport interface {
	// Send writes one message. Safe for concurrent use.
	Send(msg dap.Message) error

	// Receive reads the next message. Called from one goroutine only.
	Receive() (dap.Message, error)

	// Close releases the connection.
	Close() error
}

// StreamTransport frames DAP messages over any byte stream.
type StreamTransport struct {
	w      io.Writer
	r      *bufio.Reader
	closer io.Closer

	mu sync.Mutex
}

// NewStreamTransport wraps rwc.
func NewStreamTransport(rwc io.ReadWriteCloser) *StreamTransport {
	return &StreamTransport{w: rwc, r: bufio.NewReader(rwc), closer: rwc}
}

// Send writes msg with its Content-Length header.
func (t *StreamTransport) Send(msg dap.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return dap.WriteProtocolMessage(t.w, msg)
}

// Receive reads the next message.
func (t *StreamTransport) Receive() (dap.Message, error) {
	return dap.ReadProtocolMessage(t.r)
}

// Close closes the stream.
func (t *StreamTransport) Close() error {
	return t.closer.Close()
}

// DialTransport connects to an adapter listening on address.
func DialTransport(address string, timeout time.Duration) (*StreamTransport, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewStreamTransport(conn), nil
}

// StdioTransport talks to an adapter subprocess over its stdin and stdout.
type StdioTransport struct {
	*StreamTransport
	cmd *exec.Cmd
}

// NewStdioTransport starts cmd and connects to its standard streams.
func NewStdioTransport(cmd *exec.Cmd) (*StdioTransport, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	return &StdioTransport{
		StreamTransport: &StreamTransport{w: stdin, r: bufio.NewReader(stdout), closer: stdin},
		cmd:             cmd,
	}, nil
}

// Close closes stdin, kills the adapter and waits for it.
func (t *StdioTransport) Close() error {
	t.StreamTransport.Close()
	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}
	err := t.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
