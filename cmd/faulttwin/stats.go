package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/faulttwin/faulttwin/internal/scrape"
)

func statsCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	url := fs.String("url", "http://localhost:8080/metrics", "metrics endpoint of a running instance")
	interval := fs.Duration("interval", 5*time.Second, "poll interval")
	count := fs.Int("count", 0, "stop after this many samples (0 polls until interrupted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *interval <= 0 {
		fmt.Fprintln(stderr, "faulttwin: -interval must be positive")
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := pollStats(ctx, scrape.New(*url, 0), *interval, *count, stdout); err != nil {
		fmt.Fprintf(stderr, "faulttwin: %v\n", err)
		return 1
	}
	return 0
}

func pollStats(ctx context.Context, c *scrape.Client, interval time.Duration, count int, out io.Writer) error {
	fmt.Fprintf(out, "%-20s %10s %10s %10s %8s %8s %8s %10s %10s\n",
		"time", "lines", "accepted", "rejected", "acc/s", "rej/s", "window", "health", "infer")

	var prev *scrape.Snapshot
	t := time.NewTicker(interval)
	defer t.Stop()

	for n := 0; count == 0 || n < count; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}
		}

		snap, err := c.Scrape(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		r := snap.RatesSince(prev)
		hi := "-"
		if snap.HasHealthIndex {
			hi = fmt.Sprintf("%.2f%%", snap.HealthIndex)
		}
		fmt.Fprintf(out, "%-20s %10.0f %10.0f %10.0f %8.2f %8.2f %8.0f %10s %10s\n",
			snap.ScrapedAt.Format(time.DateTime),
			snap.LinesRead, snap.Accepted, snap.RejectedTotal(),
			r.AcceptedPerSec, r.RejectedPerSec,
			snap.HistoryEntries, hi, snap.MeanInference().Round(time.Microsecond))
		prev = snap
	}
	return nil
}
