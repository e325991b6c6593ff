package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// Client is a thin synchronous client over the daemon's newline-
// delimited JSON protocol. One Client serves one connection; it is
// safe for concurrent Call()s, which are serialized since the wire
// protocol has no request multiplexing.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	timeout time.Duration
}

// TryConnectWithTimeout dials the daemon's socket at path, returning a
// Client on success. Returns (nil, nil) if nothing is listening at
// path (a stopped daemon), distinct from a dial error.
func TryConnectWithTimeout(path string, timeout time.Duration) (*Client, error) {
	conn, err := dialRPC(path, timeout)
	if err != nil {
		if isConnRefused(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		timeout: DefaultRequestTimeout,
	}, nil
}

// SetTimeout sets the read/write deadline applied to each Call.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// Call sends req and waits for the matching Response line.
func (c *Client) Call(req Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	if _, err := c.writer.Write(data); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return nil, fmt.Errorf("flush request: %w", err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

// Health pings the daemon's health operation and decodes its payload.
func (c *Client) Health() (*HealthResponse, error) {
	resp, err := c.Call(Request{Operation: OpHealth})
	if err != nil {
		return nil, err
	}
	var health HealthResponse
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &health); err != nil {
			return nil, fmt.Errorf("unmarshal health response: %w", err)
		}
	}
	if resp.Error != "" && health.Error == "" {
		health.Error = resp.Error
		health.Status = "unhealthy"
	}
	return &health, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	if ok := asOpError(err, &opErr); !ok {
		return false
	}
	return opErr.Op == "dial"
}

func asOpError(err error, target **net.OpError) bool {
	for err != nil {
		if opErr, ok := err.(*net.OpError); ok {
			*target = opErr
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
