package source

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"go.bug.st/serial"

	"github.com/faulttwin/faulttwin/internal/config"
)

// Source yields raw lines from the device.
type Source interface {
	// ReadLine returns the next complete line without its terminator.
	// It returns "" and a nil error when the read timeout elapsed first,
	// and io.EOF once the stream has ended.
	ReadLine(ctx context.Context) (string, error)

	// Close releases the underlying device or connection.
	Close() error
}

// Open builds the Source described by cfg.
func Open(ctx context.Context, cfg config.SourceConfig) (Source, error) {
	switch cfg.Type {
	case "serial":
		return OpenSerial(cfg.Port, cfg.BaudRate, cfg.ReadTimeout)
	case "tcp":
		return DialTCP(ctx, cfg.Address, cfg.ReadTimeout)
	case "file":
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("source: open %q: %w", cfg.Path, err)
		}
		return NewReader(f, cfg.ReadTimeout, cfg.ReplayInterval), nil
	case "stdin":
		// Stdin is left open: closing it does not interrupt a blocking Read,
		// and the process owns it until exit.
		return NewReader(nopCloser{os.Stdin}, cfg.ReadTimeout, cfg.ReplayInterval), nil
	}
	return nil, fmt.Errorf("source: unknown type %q", cfg.Type)
}

// OpenSerial opens a serial device at the given baud rate, 8N1.
func OpenSerial(port string, baud int, timeout time.Duration) (Source, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("source: open serial %q: %w", port, err)
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("source: set read timeout on %q: %w", port, err)
	}
	// Drop whatever the device sent before we attached; it usually starts
	// mid-line.
	_ = p.ResetInputBuffer()

	// go.bug.st/serial reports a timed-out read as (0, nil), which is
	// already the contract newStream expects.
	return newStream(p.Read, p.Close), nil
}

// DialTCP connects to a line-oriented TCP bridge.
func DialTCP(ctx context.Context, addr string, timeout time.Duration) (Source, error) {
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("source: dial %q: %w", addr, err)
	}
	return NewConn(conn, timeout), nil
}

// NewConn wraps an established connection.
func NewConn(conn net.Conn, timeout time.Duration) Source {
	read := func(p []byte) (int, error) {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
		n, err := conn.Read(p)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, nil
		}
		return n, err
	}
	return newStream(read, conn.Close)
}

type nopCloser struct{ *os.File }

func (nopCloser) Close() error { return nil }
