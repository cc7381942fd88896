// Command faulttwin runs the electrical fault-prediction pipeline.
//
//	faulttwin run      -config config.yaml
//	faulttwin validate -config config.yaml
//	faulttwin stats    -url http://localhost:8080/metrics -interval 5s
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const usage = `usage: faulttwin <command> [flags]

commands:
  run       start the pipeline and serve the dashboard API
  validate  check the config and model artifacts, then exit
  stats     poll a running instance's /metrics and print counters
`

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

func dispatch(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "run":
		return runCmd(args[1:], stderr)
	case "validate":
		return validateCmd(args[1:], stdout, stderr)
	case "stats":
		return statsCmd(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	}
	fmt.Fprintf(stderr, "faulttwin: unknown command %q\n\n%s", args[0], usage)
	return 2
}

// newLogger builds the process logger. level is shared so hot reload can
// change verbosity without rebuilding the handler.
func newLogger(w io.Writer, format string, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
