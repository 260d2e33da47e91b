// Package rcon talks to a running Minecraft server over its RCON port.
package rcon

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorcon/rcon"
	"github.com/milndr/lodestone-server-manager/internal/server"
)

// DefaultDialTimeout bounds the TCP connect and authentication.
const DefaultDialTimeout = 5 * time.Second

var (
	// ErrDisabled is returned when a server has RCON turned off.
	ErrDisabled = errors.New("rcon is disabled (set enable-rcon=true)")
	// ErrNotConnected is returned when a command is sent before Connect.
	ErrNotConnected = errors.New("not connected to RCON server")
)

// conn abstracts *rcon.Conn so tests can substitute it.
type conn interface {
	Execute(cmd string) (string, error)
	Close() error
}

type dialFunc func(address, password string, timeout time.Duration) (conn, error)

func dialRCON(address, password string, timeout time.Duration) (conn, error) {
	return rcon.Dial(address, password, rcon.SetDialTimeout(timeout), rcon.SetDeadline(timeout))
}

// Client is an RCON connection to one server. It is safe for concurrent use;
// commands are executed one at a time.
type Client struct {
	mu       sync.Mutex
	conn     conn
	dial     dialFunc
	host     string
	port     int
	password string
	timeout  time.Duration
}

// NewClient validates the connection settings. The client is not connected
// until Connect is called.
func NewClient(host string, port int, password string) (*Client, error) {
	if host == "" {
		return nil, errors.New("host cannot be empty")
	}
	if port <= 0 || port > 65535 {
		return nil, errors.Newf("invalid port: %d", port)
	}
	if password == "" {
		return nil, errors.New("password cannot be empty (set rcon.password)")
	}
	return &Client{
		dial:     dialRCON,
		host:     host,
		port:     port,
		password: password,
		timeout:  DefaultDialTimeout,
	}, nil
}

// FromProperties builds a client for a local server from its server.properties.
func FromProperties(props *server.Properties) (*Client, error) {
	if enabled, _ := props.Bool("enable-rcon"); !enabled {
		return nil, ErrDisabled
	}
	port, ok := props.Int("rcon.port")
	if !ok {
		port = 25575
	}
	return NewClient("127.0.0.1", port, props.Raw("rcon.password"))
}

// Address returns host:port.
func (c *Client) Address() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Connect dials and authenticates.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	cn, err := c.dial(c.Address(), c.password, timeout)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to RCON at %s", c.Address())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = cn
	return nil
}

// SendCommand executes command and returns the server's response.
func (c *Client) SendCommand(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return "", ErrNotConnected
	}
	resp, err := c.conn.Execute(command)
	if err != nil {
		return "", errors.Wrapf(err, "failed to execute command: %s", command)
	}
	return resp, nil
}

// IsConnected reports whether Connect succeeded and Close was not called.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the connection. Closing an unconnected client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return errors.Wrap(err, "failed to close RCON connection")
}

// Exec is a one-shot helper: connect, run command, close.
func Exec(ctx context.Context, c *Client, command string) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}
	defer func() { _ = c.Close() }()
	return c.SendCommand(ctx, command)
}
