// Package gc runs the periodic sweep that expires stale "uploading"
// sessions, matching original_source/main.rs::gc_task.
package gc

import (
	"context"
	"log"
	"time"

	"github.com/ThanhGoodBoy/splitvault/internal/session"
)

// Run sweeps expired sessions every interval until ctx is cancelled. It
// does not return until ctx is done, so callers run it in its own
// goroutine.
func Run(ctx context.Context, manager *session.Manager, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := manager.ExpireStale(ttl, time.Now().UTC())
			if err != nil {
				log.Printf("[GC] sweep failed: %v", err)
				continue
			}
			if len(expired) > 0 {
				log.Printf("[GC] expired %d stale upload session(s)", len(expired))
			}
		}
	}
}
