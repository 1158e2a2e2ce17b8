package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ValkeyConfig holds connection parameters for a Valkey/Redis-compatible
// server used for demand-history caching.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ValkeyProvider implements Provider over a single RESP connection. The
// connection is re-established lazily after any I/O failure.
type ValkeyProvider struct {
	cfg ValkeyConfig

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

// NewValkeyProvider connects and pings the target so that bad addresses or
// credentials fail at startup rather than on the first request.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}

	p := &ValkeyProvider{cfg: cfg}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureConn(); err != nil {
		return nil, err
	}
	if _, err := p.roundTrip("PING"); err != nil {
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	return p, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply, err := p.roundTrip("GET", key)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, ErrCacheMiss
	}
	return reply, nil
}

// Set stores bytes under key. A positive ttl is applied in milliseconds.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	args := []string{key, string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	reply, err := p.roundTrip("SET", args...)
	if err != nil {
		return err
	}
	if string(reply) != "OK" {
		return fmt.Errorf("unexpected SET reply %q", reply)
	}
	return nil
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.roundTrip("DEL", key)
	return err
}

// Close tears down the connection.
func (p *ValkeyProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// ensureConn dials and authenticates when no live connection exists.
// Callers must hold p.mu.
func (p *ValkeyProvider) ensureConn() error {
	if p.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", p.cfg.Addr, p.cfg.DialTimeout)
	if err != nil {
		return err
	}
	p.conn = conn
	p.reader = bufio.NewReader(conn)
	p.writer = bufio.NewWriter(conn)

	if p.cfg.Password != "" {
		args := []string{p.cfg.Password}
		if p.cfg.Username != "" {
			args = []string{p.cfg.Username, p.cfg.Password}
		}
		if reply, err := p.roundTrip("AUTH", args...); err != nil {
			p.dropConn()
			return fmt.Errorf("valkey auth: %w", err)
		} else if !strings.EqualFold(string(reply), "OK") {
			p.dropConn()
			return fmt.Errorf("valkey auth rejected: %s", reply)
		}
	}
	if p.cfg.DB > 0 {
		if _, err := p.roundTrip("SELECT", strconv.Itoa(p.cfg.DB)); err != nil {
			p.dropConn()
			return fmt.Errorf("valkey select db %d: %w", p.cfg.DB, err)
		}
	}
	return nil
}

func (p *ValkeyProvider) dropConn() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = nil
	p.reader = nil
	p.writer = nil
}

// roundTrip sends one RESP command and reads one reply. A nil reply with a
// nil error is the RESP null bulk string. Any transport error drops the
// connection so the next call redials. Callers must hold p.mu.
func (p *ValkeyProvider) roundTrip(command string, args ...string) ([]byte, error) {
	if err := p.ensureConn(); err != nil {
		return nil, err
	}
	if err := p.writeCommand(command, args...); err != nil {
		p.dropConn()
		return nil, err
	}
	reply, err := p.readReply()
	if err != nil {
		var respErr *respError
		if !errors.As(err, &respErr) {
			p.dropConn()
		}
		return nil, err
	}
	return reply, nil
}

func (p *ValkeyProvider) writeCommand(command string, args ...string) error {
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout)); err != nil {
		return err
	}
	fmt.Fprintf(p.writer, "*%d\r\n", len(args)+1)
	for _, part := range append([]string{command}, args...) {
		fmt.Fprintf(p.writer, "$%d\r\n%s\r\n", len(part), part)
	}
	return p.writer.Flush()
}

// respError is a server-reported error, as opposed to a transport failure.
type respError struct{ msg string }

func (e *respError) Error() string { return "valkey: " + e.msg }

func (p *ValkeyProvider) readReply() ([]byte, error) {
	if err := p.conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout)); err != nil {
		return nil, err
	}
	line, err := p.readLine()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, errors.New("empty RESP reply")
	}
	body := line[1:]
	switch line[0] {
	case '+', ':':
		return body, nil
	case '-':
		return nil, &respError{msg: string(body)}
	case '$':
		size, err := strconv.Atoi(string(body))
		if err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(p.reader, buf); err != nil {
			return nil, err
		}
		return buf[:size], nil
	default:
		return nil, fmt.Errorf("unexpected RESP prefix %q", line[0])
	}
}

func (p *ValkeyProvider) readLine() ([]byte, error) {
	line, err := p.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	line = []byte(strings.TrimRight(string(line), "\r\n"))
	return line, nil
}
