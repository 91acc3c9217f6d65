package relay

import (
	"context"
	"log"
	"time"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
	"github.com/AnshRaj112/connectpro-relay/internal/transport"
)

const reminderWindow = 24 * time.Hour

// TrialStore is the durable side of the trial lifecycle: listing gated
// owners and claiming the one-time notice markers. Claims are
// compare-and-set so concurrent or repeated sweeps can never double-notify.
type TrialStore interface {
	// ListTrialGated returns every owner with a non-null trial end.
	ListTrialGated(ctx context.Context) ([]models.Owner, error)
	// ClaimTrialReminder marks the reminder as sent; returns false when it
	// was already claimed.
	ClaimTrialReminder(ctx context.Context, ownerID int64) (bool, error)
	// ClaimTrialExpiry marks the expiry notice as sent and deactivates the
	// relay in the same update; returns false when already claimed.
	ClaimTrialExpiry(ctx context.Context, ownerID int64) (bool, error)
}

// TrialMonitor periodically sweeps trial-gated owners, sending at most one
// "expiring soon" reminder and one "expired" notice per trial. The claim
// happens before the send, so a crash can at worst drop a notice, never
// duplicate one. Delivery failures are logged and swallowed: the owner may
// have blocked the bot permanently.
type TrialMonitor struct {
	store  TrialStore
	sender transport.Sender
	now    func() time.Time
}

func NewTrialMonitor(store TrialStore, sender transport.Sender, now func() time.Time) *TrialMonitor {
	if now == nil {
		now = time.Now
	}
	return &TrialMonitor{store: store, sender: sender, now: now}
}

// Start runs the sweep on a fixed period until ctx is cancelled. Runs once
// immediately on startup.
func (m *TrialMonitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if err := m.Sweep(ctx); err != nil {
			log.Printf("trial sweep failed: %v", err)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Sweep(ctx); err != nil {
					log.Printf("trial sweep failed: %v", err)
				}
			}
		}
	}()
}

// Sweep runs one pass. Safe to invoke concurrently with live routing and
// with itself.
func (m *TrialMonitor) Sweep(ctx context.Context) error {
	owners, err := m.store.ListTrialGated(ctx)
	if err != nil {
		return err
	}

	now := m.now()
	for i := range owners {
		owner := &owners[i]
		if owner.TrialEnds == nil {
			continue
		}

		switch {
		case now.After(*owner.TrialEnds):
			if owner.TrialExpiredAt != nil {
				continue
			}
			claimed, err := m.store.ClaimTrialExpiry(ctx, owner.ID)
			if err != nil {
				log.Printf("claim expiry for owner %d failed: %v", owner.ID, err)
				continue
			}
			if !claimed {
				continue
			}
			if err := m.sender.SendText(ctx, owner.Identity,
				"⚠️ *Your free trial has ended.*\n\nYour relay is paused. Upgrade to activate it again.", markdown); err != nil {
				log.Printf("trial expiry notice to %d failed: %v", owner.Identity, err)
			}

		case owner.TrialEnds.Sub(now) <= reminderWindow:
			if owner.TrialReminderAt != nil {
				continue
			}
			claimed, err := m.store.ClaimTrialReminder(ctx, owner.ID)
			if err != nil {
				log.Printf("claim reminder for owner %d failed: %v", owner.ID, err)
				continue
			}
			if !claimed {
				continue
			}
			if err := m.sender.SendText(ctx, owner.Identity,
				"⏳ *Reminder*\n\nYour free trial ends in 24 hours. Upgrade to keep your relay online.", markdown); err != nil {
				log.Printf("trial reminder to %d failed: %v", owner.Identity, err)
			}
		}
	}
	return nil
}
