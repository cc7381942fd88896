package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// readerSource replays lines from an io.Reader. A background goroutine
// scans the reader so ReadLine can honour the timeout and ctx even though
// the reader itself cannot be interrupted.
type readerSource struct {
	rc       io.ReadCloser
	lines    chan string
	errc     chan error
	done     chan struct{}
	once     sync.Once
	timeout  time.Duration
	interval time.Duration
	last     time.Time
}

// NewReader returns a Source reading newline-delimited records from rc.
// When interval is positive, consecutive lines are spaced at least that far
// apart, which turns a capture file into a live-looking stream.
func NewReader(rc io.ReadCloser, timeout, interval time.Duration) Source {
	if timeout <= 0 {
		timeout = time.Second
	}
	s := &readerSource{
		rc:       rc,
		lines:    make(chan string),
		errc:     make(chan error, 1),
		done:     make(chan struct{}),
		timeout:  timeout,
		interval: interval,
	}
	go s.scan()
	return s
}

func (s *readerSource) scan() {
	sc := bufio.NewScanner(s.rc)
	sc.Buffer(make([]byte, 0, 512), MaxLineLength)
	for sc.Scan() {
		select {
		case s.lines <- string(trimCR(sc.Bytes())):
		case <-s.done:
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	} else {
		err = fmt.Errorf("source: scan: %w", err)
	}
	s.errc <- err
}

func (s *readerSource) ReadLine(ctx context.Context) (string, error) {
	if s.interval > 0 && !s.last.IsZero() {
		if wait := time.Until(s.last.Add(s.interval)); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
		}
	}

	t := time.NewTimer(s.timeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.done:
		return "", io.EOF
	case line := <-s.lines:
		s.last = time.Now()
		return line, nil
	case err := <-s.errc:
		// Keep reporting the terminal error on later calls.
		s.errc <- err
		return "", err
	case <-t.C:
		return "", nil
	}
}

// Close stops delivery; later ReadLine calls return io.EOF. A scan blocked
// in a Read that Close cannot interrupt (stdin) parks until the next line
// arrives or the process exits, then returns without delivering it.
func (s *readerSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.rc.Close()
	})
	return err
}
