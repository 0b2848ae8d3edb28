package transport

import (
	"net"
	"time"

	"github.com/alxayo/audiocast/internal/audiocast/frame"
)

// retryInterval is the delay between connection attempts when the initial
// dial fails.
const retryInterval = 1 * time.Second

// Client is a thin frame reader wrapping a single TCP connection to a
// broadcast server.
type Client struct {
	conn         net.Conn
	maxFrameSize uint32
}

// Dial connects to addr once, without retry. Callers that want the
// indefinite-retry behavior described for the client CLI should use
// DialWithRetry.
func Dial(addr string, maxFrameSize uint32) (*Client, error) {
	if maxFrameSize == 0 {
		maxFrameSize = frame.DefaultMaxFrameSize
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, maxFrameSize: maxFrameSize}, nil
}

// DialWithRetry connects to addr, retrying once per second indefinitely
// until a connection succeeds or cancel is closed.
func DialWithRetry(addr string, maxFrameSize uint32, cancel <-chan struct{}) (*Client, error) {
	for {
		c, err := Dial(addr, maxFrameSize)
		if err == nil {
			return c, nil
		}
		select {
		case <-cancel:
			return nil, err
		case <-time.After(retryInterval):
		}
	}
}

// Receive reads the next frame's payload. Peer-gone errors (server
// disconnect) are returned wrapped in *errors.PeerGoneError so callers can
// distinguish a clean disconnect from a fatal I/O or framing error; callers
// should test with errors.IsPeerGone.
func (c *Client) Receive() ([]byte, error) {
	return frame.ReadFrame(c.conn, c.maxFrameSize)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the address of the connected server.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
