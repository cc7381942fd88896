package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// MaxLineLength caps a single record. A longer run of bytes without a
// newline is returned as one (invalid) line so the buffer cannot grow
// without bound on a noisy link.
const MaxLineLength = 4096

// stream frames lines out of a timeout-bounded byte reader.
type stream struct {
	read  func(p []byte) (int, error) // (0, nil) means timed out
	close func() error
	buf   []byte
	chunk []byte
	eof   bool
}

func newStream(read func([]byte) (int, error), close func() error) *stream {
	return &stream{
		read:  read,
		close: close,
		chunk: make([]byte, 512),
	}
}

func (s *stream) ReadLine(ctx context.Context) (string, error) {
	for {
		if line, ok := s.next(); ok {
			return line, nil
		}
		if s.eof {
			if len(s.buf) > 0 {
				line := string(trimCR(s.buf))
				s.buf = s.buf[:0]
				return line, nil
			}
			return "", io.EOF
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := s.read(s.chunk)
		s.buf = append(s.buf, s.chunk[:n]...)
		switch {
		case errors.Is(err, io.EOF):
			s.eof = true
		case err != nil:
			return "", fmt.Errorf("source: read: %w", err)
		case n == 0:
			return "", nil
		}
	}
}

// next pops one complete line from the buffer.
func (s *stream) next() (string, bool) {
	if i := bytes.IndexByte(s.buf, '\n'); i >= 0 {
		line := string(trimCR(s.buf[:i]))
		s.buf = s.buf[:copy(s.buf, s.buf[i+1:])]
		return line, true
	}
	if len(s.buf) >= MaxLineLength {
		line := string(s.buf)
		s.buf = s.buf[:0]
		return line, true
	}
	return "", false
}

func (s *stream) Close() error { return s.close() }

func trimCR(b []byte) []byte {
	return bytes.TrimSuffix(b, []byte{'\r'})
}
