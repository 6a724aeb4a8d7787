// Package runner wires the pipeline stages into the long-running daemon:
// discovery on a cron schedule, summary fan-out and delivery on tickers.
package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"digestbot/internal/config"
	"digestbot/internal/deliver"
	"digestbot/internal/discover"
	"digestbot/internal/summarize"
)

// Runner owns the periodic loops. Each loop isolates its own failures so a
// bad cycle never stops the process.
type Runner struct {
	cfg        *config.Config
	discoverer *discover.Discoverer
	scanner    *summarize.Scanner
	loop       *deliver.Loop
}

// New creates a runner over already-wired pipeline stages.
func New(cfg *config.Config, discoverer *discover.Discoverer, scanner *summarize.Scanner, loop *deliver.Loop) *Runner {
	return &Runner{cfg: cfg, discoverer: discoverer, scanner: scanner, loop: loop}
}

// Run starts all loops and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.cfg.Discovery.Cron, r.runDiscovery); err != nil {
		return fmt.Errorf("invalid discovery cron %q: %w", r.cfg.Discovery.Cron, err)
	}
	c.Start()
	defer c.Stop()

	go r.tick(ctx, time.Duration(r.cfg.Summaries.ScanIntervalSeconds)*time.Second, r.runScan)
	go r.tick(ctx, time.Duration(r.cfg.Delivery.IntervalSeconds)*time.Second, r.runDeliver)

	log.Printf("Runner started: discovery %q, scan every %ds, delivery every %ds",
		r.cfg.Discovery.Cron, r.cfg.Summaries.ScanIntervalSeconds, r.cfg.Delivery.IntervalSeconds)

	<-ctx.Done()
	return nil
}

// tick runs fn immediately and then on every interval until ctx is done.
func (r *Runner) tick(ctx context.Context, interval time.Duration, fn func()) {
	fn()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (r *Runner) runDiscovery() {
	r.discoverer.Run()
}

func (r *Runner) runScan() {
	result := r.scanner.Scan(context.Background())
	if result.Scanned > 0 {
		log.Printf("Fan-out: %d scanned, %d summarized, %d translations, %d failed",
			result.Scanned, result.Summarized, result.Translated, result.Failed)
	}
}

func (r *Runner) runDeliver() {
	result := r.loop.Cycle()
	if result.Sent+result.WrittenOff+result.Skipped > 0 {
		log.Printf("Delivery: %d sent, %d written off, %d retried later",
			result.Sent, result.WrittenOff, result.Skipped)
	}
}
