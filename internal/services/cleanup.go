package services

import (
	"context"
	"log"
	"time"
)

// messageRetention is the slice of MessageService the sweeper needs.
type messageRetention interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// pendingRetention is the slice of OwnerService the sweeper needs.
type pendingRetention interface {
	PurgeStalePending(ctx context.Context, maxAge time.Duration) (int64, error)
}

// StartRetentionSweeper runs the data-retention sweep on a fixed cadence:
// message records past retentionDays are deleted, and pending payments
// past pendingTTL are purged. One sweep fires immediately on startup.
func StartRetentionSweeper(ctx context.Context, msgs messageRetention, owners pendingRetention, retentionDays int, pendingTTL time.Duration, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		runRetentionSweep(ctx, msgs, owners, retentionDays, pendingTTL, time.Now().UTC())
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runRetentionSweep(ctx, msgs, owners, retentionDays, pendingTTL, time.Now().UTC())
			}
		}
	}()
	log.Printf("🧹 Retention sweeper started (every %v, keep %d days)", interval, retentionDays)
}

// runRetentionSweep deletes message records strictly older than
// now minus retentionDays, so a record exactly at the boundary survives
// one more sweep.
func runRetentionSweep(ctx context.Context, msgs messageRetention, owners pendingRetention, retentionDays int, pendingTTL time.Duration, now time.Time) {
	sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cutoff := now.AddDate(0, 0, -retentionDays)
	deleted, err := msgs.DeleteOlderThan(sweepCtx, cutoff)
	if err != nil {
		log.Printf("Retention sweep: message cleanup failed: %v", err)
	} else if deleted > 0 {
		log.Printf("🧹 Retention sweep: deleted %d message records older than %s", deleted, cutoff.Format("2006-01-02"))
	}

	purged, err := owners.PurgeStalePending(sweepCtx, pendingTTL)
	if err != nil {
		log.Printf("Retention sweep: pending payment purge failed: %v", err)
	} else if purged > 0 {
		log.Printf("🧹 Retention sweep: purged %d stale pending payments", purged)
	}
}
