package dapproxy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/go-dap"

	"github.com/dshills/dbgview/internal/logging"
)

// ErrClientClosed is returned for requests after the connection ended.
var ErrClientClosed = errors.New("dap client closed")

// ResponseError is an unsuccessful DAP response.
type ResponseError struct {
	Command string
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s request failed", e.Command)
	}
	return fmt.Sprintf("%s request failed: %s", e.Command, e.Message)
}

// Client correlates DAP requests with responses and forwards events.
type Client struct {
	transport Transport
	log       *logging.Logger
	seq       atomic.Int64

	pendingMu sync.Mutex
	pending   map[int]chan dap.ResponseMessage

	onEvent func(dap.EventMessage)

	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// NewClient starts reading from t. onEvent is called on the receive
// goroutine for every event.
func NewClient(t Transport, onEvent func(dap.EventMessage), log *logging.Logger) *Client {
	if log == nil {
		log = logging.Null()
	}
	c := &Client{
		transport: t,
		log:       log.WithComponent("dap"),
		pending:   make(map[int]chan dap.ResponseMessage),
		onEvent:   onEvent,
		done:      make(chan struct{}),
	}
	go c.receiveLoop()
	return c
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close closes the transport and fails pending requests.
func (c *Client) Close() error {
	err := c.transport.Close()
	c.shutdown(ErrClientClosed)
	return err
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()

		c.pendingMu.Lock()
		for seq, ch := range c.pending {
			close(ch)
			delete(c.pending, seq)
		}
		c.pendingMu.Unlock()
		close(c.done)
	})
}

func (c *Client) receiveLoop() {
	for {
		msg, err := c.transport.Receive()
		if err != nil {
			var fieldErr *dap.DecodeProtocolMessageFieldError
			if errors.As(err, &fieldErr) {
				// The frame was consumed; only its body was not understood.
				c.log.Debug("skipping message: %v", err)
				continue
			}
			c.shutdown(fmt.Errorf("receive: %w", err))
			return
		}

		switch m := msg.(type) {
		case dap.ResponseMessage:
			c.deliver(m)
		case dap.EventMessage:
			if c.onEvent != nil {
				c.onEvent(m)
			}
		default:
			c.log.Debug("ignoring %T", msg)
		}
	}
}

func (c *Client) deliver(resp dap.ResponseMessage) {
	seq := resp.GetResponse().RequestSeq
	c.pendingMu.Lock()
	ch, ok := c.pending[seq]
	delete(c.pending, seq)
	c.pendingMu.Unlock()
	if !ok {
		c.log.Debug("response to unknown request %d", seq)
		return
	}
	ch <- resp
}

// Call sends req and waits for its response. Unsuccessful responses are
// returned as *ResponseError.
func (c *Client) Call(ctx context.Context, req dap.RequestMessage) (dap.ResponseMessage, error) {
	r := req.GetRequest()
	r.Type = "request"
	r.Seq = int(c.seq.Add(1))

	ch := make(chan dap.ResponseMessage, 1)
	c.pendingMu.Lock()
	select {
	case <-c.done:
		c.pendingMu.Unlock()
		return nil, c.closedErr()
	default:
	}
	c.pending[r.Seq] = ch
	c.pendingMu.Unlock()

	if err := c.transport.Send(req); err != nil {
		c.forget(r.Seq)
		return nil, fmt.Errorf("send %s: %w", r.Command, err)
	}

	select {
	case <-ctx.Done():
		c.forget(r.Seq)
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, c.closedErr()
		}
		if base := resp.GetResponse(); !base.Success {
			msg := base.Message
			if er, ok := resp.(*dap.ErrorResponse); ok && er.Body.Error != nil {
				msg = er.Body.Error.Format
			}
			return resp, &ResponseError{Command: base.Command, Message: msg}
		}
		return resp, nil
	}
}

func (c *Client) forget(seq int) {
	c.pendingMu.Lock()
	delete(c.pending, seq)
	c.pendingMu.Unlock()
}

func (c *Client) closedErr() error {
	if err := c.Err(); err != nil && !errors.Is(err, ErrClientClosed) {
		return fmt.Errorf("%w: %v", ErrClientClosed, err)
	}
	return ErrClientClosed
}

// call is Call with a typed response.
func call[R dap.ResponseMessage](ctx context.Context, c *Client, req dap.RequestMessage) (R, error) {
	var zero R
	resp, err := c.Call(ctx, req)
	if err != nil {
		return zero, err
	}
	typed, ok := resp.(R)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected response %T", req.GetRequest().Command, resp)
	}
	return typed, nil
}
