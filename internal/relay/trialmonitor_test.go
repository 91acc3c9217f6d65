package relay

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
)

// fakeTrialStore implements TrialStore with in-memory CAS claims.
type fakeTrialStore struct {
	mu     sync.Mutex
	owners []*models.Owner
}

func (s *fakeTrialStore) ListTrialGated(_ context.Context) ([]models.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Owner
	for _, o := range s.owners {
		if o.TrialEnds != nil {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *fakeTrialStore) ClaimTrialReminder(_ context.Context, ownerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.owners {
		if o.ID == ownerID {
			if o.TrialReminderAt != nil {
				return false, nil
			}
			now := time.Now()
			o.TrialReminderAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeTrialStore) ClaimTrialExpiry(_ context.Context, ownerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.owners {
		if o.ID == ownerID {
			if o.TrialExpiredAt != nil {
				return false, nil
			}
			now := time.Now()
			o.TrialExpiredAt = &now
			o.Active = false
			return true, nil
		}
	}
	return false, nil
}

func trialOwner(id, identity int64, ends time.Time) *models.Owner {
	return &models.Owner{
		ID:        id,
		Identity:  identity,
		Name:      "Acme",
		Plan:      models.PlanTrial,
		Active:    true,
		TrialEnds: &ends,
	}
}

func TestTrialMonitorSendsReminderInsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeTrialStore{owners: []*models.Owner{
		trialOwner(1, 100, now.Add(12*time.Hour)), // inside the 24h window
		trialOwner(2, 200, now.Add(80*time.Hour)), // not yet
	}}
	sender := newFakeSender()
	m := NewTrialMonitor(store, sender, func() time.Time { return now })

	if err := m.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(sender.messages(100)) != 1 || !strings.Contains(sender.lastText(100), "trial ends") {
		t.Fatalf("expected one reminder for owner 100, got %+v", sender.messages(100))
	}
	if len(sender.messages(200)) != 0 {
		t.Fatal("owner 200 is outside the window and must not be notified")
	}
}

func TestTrialMonitorSendsExpiryAndDeactivates(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeTrialStore{owners: []*models.Owner{
		trialOwner(1, 100, now.Add(-time.Hour)),
	}}
	sender := newFakeSender()
	m := NewTrialMonitor(store, sender, func() time.Time { return now })

	if err := m.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(sender.messages(100)) != 1 {
		t.Fatalf("expected one expiry notice, got %d", len(sender.messages(100)))
	}
	if store.owners[0].Active {
		t.Fatal("expired owner must be deactivated")
	}
}

// Repeated sweeps must never duplicate a notice: the claim marker gates
// the send.
func TestTrialMonitorSweepIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeTrialStore{owners: []*models.Owner{
		trialOwner(1, 100, now.Add(-time.Hour)),
		trialOwner(2, 200, now.Add(12*time.Hour)),
	}}
	sender := newFakeSender()
	m := NewTrialMonitor(store, sender, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if err := m.Sweep(context.Background()); err != nil {
			t.Fatalf("sweep %d failed: %v", i, err)
		}
	}

	if n := len(sender.messages(100)); n != 1 {
		t.Fatalf("expected exactly one expiry notice, got %d", n)
	}
	if n := len(sender.messages(200)); n != 1 {
		t.Fatalf("expected exactly one reminder, got %d", n)
	}
}

// A failed delivery still consumes the claim; the notice is dropped, not
// retried into a duplicate.
func TestTrialMonitorDeliveryFailureDoesNotRetry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeTrialStore{owners: []*models.Owner{
		trialOwner(1, 100, now.Add(-time.Hour)),
	}}
	sender := newFakeSender()
	sender.fail[100] = true
	m := NewTrialMonitor(store, sender, func() time.Time { return now })

	if err := m.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	sender.fail[100] = false
	if err := m.Sweep(context.Background()); err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}

	if n := len(sender.messages(100)); n != 0 {
		t.Fatalf("claimed notice must not be resent, got %d messages", n)
	}
}
