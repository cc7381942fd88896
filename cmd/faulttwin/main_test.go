package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faulttwin/faulttwin/internal/metrics"
	"github.com/faulttwin/faulttwin/internal/scrape"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func modelsDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("..", "..", "internal", "model", "testdata"))
	require.NoError(t, err)
	return dir
}

func TestDispatch_Usage(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, dispatch(nil, &out, &errOut))
	assert.Contains(t, errOut.String(), "usage: faulttwin")

	errOut.Reset()
	assert.Equal(t, 2, dispatch([]string{"bogus"}, &out, &errOut))
	assert.Contains(t, errOut.String(), `unknown command "bogus"`)

	assert.Equal(t, 0, dispatch([]string{"help"}, &out, &errOut))
}

func TestValidate_OK(t *testing.T) {
	path := writeConfig(t, `
source:
  type: stdin
models:
  dir: `+modelsDir(t)+`
`)
	var out, errOut bytes.Buffer
	code := dispatch([]string{"validate", "-config", path}, &out, &errOut)

	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "classifier: 3 trees, 6 classes")
	assert.Contains(t, out.String(), "features:   [Current Voltage Temperature Power]")
}

func TestValidate_MissingModels(t *testing.T) {
	path := writeConfig(t, `
source:
  type: stdin
models:
  dir: `+t.TempDir()+`
`)
	var out, errOut bytes.Buffer
	assert.Equal(t, 1, dispatch([]string{"validate", "-config", path}, &out, &errOut))
	assert.NotEmpty(t, errOut.String())
}

func TestValidate_BadFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, dispatch([]string{"validate", "-nope"}, &out, &errOut))
}

func TestPollStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	for i := 0; i < 5; i++ {
		m.LineRead()
		m.Accepted()
	}
	m.SetWindow(5, 87.25, true)

	srv := httptest.NewServer(metrics.Handler(reg))
	defer srv.Close()

	var out bytes.Buffer
	err := pollStats(context.Background(), scrape.New(srv.URL, time.Second), 10*time.Millisecond, 2, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3, out.String())
	assert.Contains(t, lines[0], "accepted")
	assert.Contains(t, lines[1], "87.25%")
}

func TestStats_BadInterval(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, dispatch([]string{"stats", "-interval", "0s"}, &out, &errOut))
}
