package relay

import (
	"errors"
	"sync"
	"testing"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
)

func TestSessionStoreGetAbsentReturnsZero(t *testing.T) {
	s := NewSessionStore()
	sess := s.Get(42)
	if sess.Step != StepNone || sess.BoundOwnerIdentity != nil || sess.PendingReplyTarget != nil {
		t.Fatalf("expected zero session, got %+v", sess)
	}
}

func TestSessionStoreBindAndClear(t *testing.T) {
	s := NewSessionStore()
	s.BindOwner(1, 99)

	sess := s.Get(1)
	if sess.BoundOwnerIdentity == nil || *sess.BoundOwnerIdentity != 99 {
		t.Fatalf("expected binding to 99, got %+v", sess.BoundOwnerIdentity)
	}

	s.ClearBinding(1)
	if s.Get(1).BoundOwnerIdentity != nil {
		t.Fatal("binding should be cleared")
	}
}

func TestAdvanceStepEnforcesOrder(t *testing.T) {
	s := NewSessionStore()
	s.BeginOnboarding(1)

	// Skipping a step is refused and changes nothing.
	if err := s.AdvanceStep(1, StepBio, func(p *ProfileSnapshot) { p.Bio = "x" }); !errors.Is(err, ErrInvalidStepTransition) {
		t.Fatalf("expected ErrInvalidStepTransition, got %v", err)
	}
	sess := s.Get(1)
	if sess.Step != StepName || sess.Draft.Bio != "" {
		t.Fatalf("refused transition mutated state: %+v", sess)
	}

	// The direct successor is accepted.
	if err := s.AdvanceStep(1, StepCategory, func(p *ProfileSnapshot) { p.Name = "Acme" }); err != nil {
		t.Fatalf("valid transition failed: %v", err)
	}
	sess = s.Get(1)
	if sess.Step != StepCategory || sess.Draft.Name != "Acme" {
		t.Fatalf("unexpected state after advance: %+v", sess)
	}
}

func TestCompleteOnboardingRequiresNameAndCategory(t *testing.T) {
	s := NewSessionStore()
	s.BeginOnboarding(1)
	s.AdvanceStep(1, StepCategory, func(p *ProfileSnapshot) { p.Name = "Acme" })

	if _, err := s.CompleteOnboarding(1); !errors.Is(err, ErrIncompleteOnboarding) {
		t.Fatalf("expected ErrIncompleteOnboarding, got %v", err)
	}
	// Incomplete completion leaves the wizard where it was.
	if s.Get(1).Step != StepCategory {
		t.Fatal("failed completion should not reset the session")
	}

	s.AdvanceStep(1, StepBio, func(p *ProfileSnapshot) { p.Category = models.CategoryTech })
	snap, err := s.CompleteOnboarding(1)
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if snap.Name != "Acme" || snap.Category != models.CategoryTech {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if sess := s.Get(1); sess.Step != StepNone || sess.Draft.Name != "" {
		t.Fatalf("completion should clear wizard state, got %+v", sess)
	}
}

func TestBeginOnboardingResetsDraft(t *testing.T) {
	s := NewSessionStore()
	s.BeginOnboarding(1)
	s.AdvanceStep(1, StepCategory, func(p *ProfileSnapshot) { p.Name = "Old" })

	s.BeginOnboarding(1)
	sess := s.Get(1)
	if sess.Step != StepName || sess.Draft.Name != "" {
		t.Fatalf("restart should reset draft, got %+v", sess)
	}
}

func TestTakePendingReplyIsSingleShot(t *testing.T) {
	s := NewSessionStore()
	s.SetPendingReply(10, 77)

	target, ok := s.TakePendingReply(10)
	if !ok || target != 77 {
		t.Fatalf("expected (77, true), got (%d, %v)", target, ok)
	}
	if _, ok := s.TakePendingReply(10); ok {
		t.Fatal("second take must return false")
	}
}

// Only one of many concurrent takes may win.
func TestTakePendingReplyConcurrent(t *testing.T) {
	s := NewSessionStore()
	s.SetPendingReply(10, 77)

	var wg sync.WaitGroup
	var wins int32
	var mu sync.Mutex
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.TakePendingReply(10); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
