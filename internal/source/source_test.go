package source

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faulttwin/faulttwin/internal/config"
)

func readAll(t *testing.T, src Source) []string {
	t.Helper()
	ctx := context.Background()
	var out []string
	for i := 0; i < 1000; i++ {
		line, err := src.ReadLine(ctx)
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		if line != "" {
			out = append(out, line)
		}
	}
	t.Fatal("source never reached EOF")
	return nil
}

func TestReader_Lines(t *testing.T) {
	in := "0.30,220.0,35.0\r\nabc,220.0\n\n0.1,230,30"
	src := NewReader(io.NopCloser(strings.NewReader(in)), time.Second, 0)
	defer src.Close()

	// The blank line comes back as "" and is indistinguishable from a
	// timeout, which the loop treats the same way.
	assert.Equal(t, []string{"0.30,220.0,35.0", "abc,220.0", "0.1,230,30"}, readAll(t, src))

	_, err := src.ReadLine(context.Background())
	assert.ErrorIs(t, err, io.EOF, "EOF is sticky")
}

func TestReader_Timeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewReader(pr, 20*time.Millisecond, 0)
	defer src.Close()

	start := time.Now()
	line, err := src.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Empty(t, line)
	assert.Less(t, time.Since(start), time.Second)
}

func TestReader_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewReader(pr, time.Minute, 0)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.ReadLine(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReader_CloseWithUninterruptibleRead(t *testing.T) {
	// NopCloser stands in for stdin: Close cannot unblock the pending Read.
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewReader(io.NopCloser(pr), time.Minute, 0)

	require.NoError(t, src.Close())

	start := time.Now()
	_, err := src.ReadLine(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Less(t, time.Since(start), time.Second)

	// The parked scan consumes the next line and exits without delivering it.
	written := make(chan error, 1)
	go func() {
		_, err := pw.Write([]byte("0.30,220.0,35.0\n"))
		written <- err
	}()
	select {
	case err := <-written:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scan goroutine did not drain after Close")
	}
}

func TestReader_ReplayInterval(t *testing.T) {
	src := NewReader(io.NopCloser(strings.NewReader("a\nb\nc\n")), time.Second, 30*time.Millisecond)
	defer src.Close()

	start := time.Now()
	assert.Equal(t, []string{"a", "b", "c"}, readAll(t, src))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestConn_PartialLinesAcrossTimeouts(t *testing.T) {
	client, server := net.Pipe()
	src := NewConn(client, 30*time.Millisecond)
	defer src.Close()

	go func() {
		server.Write([]byte("0.30,22"))
		time.Sleep(100 * time.Millisecond)
		server.Write([]byte("0.0,35.0\n0.5,250,3"))
		server.Write([]byte("5\n"))
		server.Close()
	}()

	assert.Equal(t, []string{"0.30,220.0,35.0", "0.5,250,35"}, readAll(t, src))
}

func TestConn_TimeoutReturnsEmpty(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	src := NewConn(client, 20*time.Millisecond)
	defer src.Close()

	line, err := src.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Empty(t, line)
}

func TestStream_OverlongLine(t *testing.T) {
	data := strings.Repeat("9", MaxLineLength+10) + "\n1,2,3\n"
	r := strings.NewReader(data)
	src := newStream(r.Read, func() error { return nil })

	lines := readAll(t, src)
	require.Len(t, lines, 3)
	assert.Len(t, lines[0], MaxLineLength)
	assert.Equal(t, "9999999999", lines[1])
	assert.Equal(t, "1,2,3", lines[2])
}

func TestOpen_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "capture.csv")
	require.NoError(t, os.WriteFile(p, []byte("1,2,3\n4,5,6\n"), 0o600))

	src, err := Open(context.Background(), config.SourceConfig{Type: "file", Path: p, ReadTimeout: time.Second})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, []string{"1,2,3", "4,5,6"}, readAll(t, src))
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, config.SourceConfig{Type: "file", Path: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Open(ctx, config.SourceConfig{Type: "serial", Port: filepath.Join(t.TempDir(), "ttyNONE"), BaudRate: 9600, ReadTimeout: time.Second})
	assert.Error(t, err)

	_, err = Open(ctx, config.SourceConfig{Type: "carrier-pigeon"})
	assert.Error(t, err)
}
