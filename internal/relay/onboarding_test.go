package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
	"github.com/AnshRaj112/connectpro-relay/internal/transport"
)

func newTestWizard(dir *fakeDirectory, sender *fakeSender) (*Wizard, *SessionStore, *fakePendingPayments) {
	sessions := NewSessionStore()
	pending := newFakePendingPayments()
	w := NewWizard(sessions, dir, pending, fakeLinker{}, nil, sender, 24*time.Hour, "connectpro_bot")
	return w, sessions, pending
}

func textEvent(senderID int64, text string) transport.Event {
	return transport.Event{SenderID: senderID, ChatID: senderID, Text: text}
}

func callbackEvent(senderID int64, data string) transport.Event {
	return transport.Event{SenderID: senderID, ChatID: senderID, CallbackData: data}
}

func runBasicOnboarding(t *testing.T, w *Wizard, sessions *SessionStore, userID int64) {
	t.Helper()
	ctx := context.Background()

	w.Begin(ctx, textEvent(userID, "/owner"))
	w.HandleEvent(ctx, textEvent(userID, "Acme Gadgets"), sessions.Get(userID))
	w.HandleEvent(ctx, callbackEvent(userID, "cat_Tech"), sessions.Get(userID))
	w.HandleEvent(ctx, textEvent(userID, "We sell gadgets."), sessions.Get(userID))
	w.HandleEvent(ctx, textEvent(userID, "skip"), sessions.Get(userID))
	w.HandleEvent(ctx, callbackEvent(userID, "plan_basic"), sessions.Get(userID))
}

func TestOnboardingBasicHappyPath(t *testing.T) {
	dir := newFakeDirectory()
	sender := newFakeSender()
	w, sessions, _ := newTestWizard(dir, sender)

	runBasicOnboarding(t, w, sessions, 5)

	owner, err := dir.LookupByIdentity(context.Background(), 5)
	if err != nil || owner == nil {
		t.Fatalf("owner not created: %v", err)
	}
	if owner.Name != "Acme Gadgets" || owner.Category != models.CategoryTech || owner.Bio != "We sell gadgets." {
		t.Fatalf("unexpected owner: %+v", owner)
	}
	if owner.Plan != models.PlanBasic || !owner.Active {
		t.Fatalf("expected active basic plan, got %+v", owner)
	}
	if owner.LogoRef != nil {
		t.Fatalf("skip should leave no logo, got %v", *owner.LogoRef)
	}
	if sess := sessions.Get(5); sess.Step != StepNone {
		t.Fatalf("wizard state should be cleared, got step %v", sess.Step)
	}
	if !strings.Contains(sender.lastText(5), "t.me/connectpro_bot?start=owner_5") {
		t.Fatalf("confirmation should carry the deep link, got %q", sender.lastText(5))
	}
}

func TestOnboardingShortNameReprompts(t *testing.T) {
	dir := newFakeDirectory()
	sender := newFakeSender()
	w, sessions, _ := newTestWizard(dir, sender)
	ctx := context.Background()

	w.Begin(ctx, textEvent(5, "/owner"))
	w.HandleEvent(ctx, textEvent(5, "A"), sessions.Get(5))

	if sess := sessions.Get(5); sess.Step != StepName || sess.Draft.Name != "" {
		t.Fatalf("short name should not advance, got %+v", sess)
	}
	if !strings.Contains(sender.lastText(5), "too short") {
		t.Fatalf("expected re-prompt, got %q", sender.lastText(5))
	}
}

func TestOnboardingUnknownCategoryReprompts(t *testing.T) {
	dir := newFakeDirectory()
	sender := newFakeSender()
	w, sessions, _ := newTestWizard(dir, sender)
	ctx := context.Background()

	w.Begin(ctx, textEvent(5, "/owner"))
	w.HandleEvent(ctx, textEvent(5, "Acme"), sessions.Get(5))
	w.HandleEvent(ctx, textEvent(5, "Astrology"), sessions.Get(5))

	if sess := sessions.Get(5); sess.Step != StepCategory {
		t.Fatalf("unknown category should not advance, got step %v", sess.Step)
	}
}

func TestOnboardingLongBioTruncated(t *testing.T) {
	dir := newFakeDirectory()
	sender := newFakeSender()
	w, sessions, _ := newTestWizard(dir, sender)
	ctx := context.Background()

	w.Begin(ctx, textEvent(5, "/owner"))
	w.HandleEvent(ctx, textEvent(5, "Acme"), sessions.Get(5))
	w.HandleEvent(ctx, textEvent(5, "tech"), sessions.Get(5))
	w.HandleEvent(ctx, textEvent(5, strings.Repeat("é", 600)), sessions.Get(5))

	sess := sessions.Get(5)
	if sess.Step != StepLogo {
		t.Fatalf("over-length bio should still advance, got step %v", sess.Step)
	}
	if got := len([]rune(sess.Draft.Bio)); got != 500 {
		t.Fatalf("bio should be truncated to 500 runes, got %d", got)
	}
}

func TestOnboardingCancel(t *testing.T) {
	dir := newFakeDirectory()
	sender := newFakeSender()
	w, sessions, _ := newTestWizard(dir, sender)
	ctx := context.Background()

	w.Begin(ctx, textEvent(5, "/owner"))
	w.HandleEvent(ctx, textEvent(5, "Acme"), sessions.Get(5))
	w.HandleEvent(ctx, textEvent(5, "/cancel"), sessions.Get(5))

	if sess := sessions.Get(5); sess.Step != StepNone || sess.Draft.Name != "" {
		t.Fatalf("cancel should clear wizard state, got %+v", sess)
	}
	if dir.count() != 0 {
		t.Fatal("cancel must not create an owner")
	}
}

func TestOnboardingBeginWithExistingOwner(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(&models.Owner{Identity: 5, Name: "Acme", Plan: models.PlanBasic, Active: true})
	sender := newFakeSender()
	w, sessions, _ := newTestWizard(dir, sender)

	w.Begin(context.Background(), textEvent(5, "/owner"))

	if sess := sessions.Get(5); sess.Step != StepNone {
		t.Fatal("existing owner must not enter the wizard")
	}
	if !strings.Contains(sender.lastText(5), "already have an account") {
		t.Fatalf("expected already-registered notice, got %q", sender.lastText(5))
	}
}

func TestOnboardingPremiumDefersCreation(t *testing.T) {
	dir := newFakeDirectory()
	sender := newFakeSender()
	w, sessions, pending := newTestWizard(dir, sender)
	ctx := context.Background()

	w.Begin(ctx, textEvent(5, "/owner"))
	w.HandleEvent(ctx, textEvent(5, "Acme"), sessions.Get(5))
	w.HandleEvent(ctx, callbackEvent(5, "cat_Creative"), sessions.Get(5))
	w.HandleEvent(ctx, textEvent(5, "bio"), sessions.Get(5))
	w.HandleEvent(ctx, textEvent(5, "skip"), sessions.Get(5))
	w.HandleEvent(ctx, callbackEvent(5, "plan_premium"), sessions.Get(5))

	if dir.count() != 0 {
		t.Fatal("premium selection must not create the owner before payment")
	}
	if sess := sessions.Get(5); sess.Step != StepPaymentPending {
		t.Fatalf("expected payment-pending step, got %v", sess.Step)
	}
	rec, _ := pending.Take(ctx, 5, time.Hour)
	if rec == nil || rec.Plan != models.PlanPremium || rec.Name != "Acme" {
		t.Fatalf("pending record missing or wrong: %+v", rec)
	}
}

func TestOnPaymentConfirmedCreatesOwner(t *testing.T) {
	dir := newFakeDirectory()
	sender := newFakeSender()
	w, sessions, pending := newTestWizard(dir, sender)
	ctx := context.Background()

	pending.Save(ctx, &models.PendingPayment{
		Identity: 5, Name: "Acme", Category: models.CategoryTech,
		Bio: "bio", Plan: models.PlanPremium, Ref: "ref-1", CreatedAt: time.Now(),
	})
	sessions.BeginOnboarding(5)

	if err := w.OnPaymentConfirmed(ctx, 5, models.PlanPremium, "pay-1"); err != nil {
		t.Fatalf("confirmation failed: %v", err)
	}

	owner, _ := dir.LookupByIdentity(ctx, 5)
	if owner == nil || owner.Plan != models.PlanPremium {
		t.Fatalf("premium owner not created: %+v", owner)
	}
	if sess := sessions.Get(5); sess.Step != StepNone {
		t.Fatal("confirmation should clear wizard state")
	}
}

func TestOnPaymentConfirmedWithoutPending(t *testing.T) {
	dir := newFakeDirectory()
	sender := newFakeSender()
	w, _, _ := newTestWizard(dir, sender)

	err := w.OnPaymentConfirmed(context.Background(), 5, models.PlanPremium, "pay-1")
	if !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}
}

func TestOnPaymentConfirmedExtendsExistingOwner(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(&models.Owner{Identity: 5, Name: "Acme", Plan: models.PlanBasic, Active: true})
	sender := newFakeSender()
	w, _, _ := newTestWizard(dir, sender)
	ctx := context.Background()

	if err := w.OnPaymentConfirmed(ctx, 5, models.PlanPremium, "pay-1"); err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	owner, _ := dir.LookupByIdentity(ctx, 5)
	if owner.Plan != models.PlanPremium || owner.SubscriptionExpires == nil {
		t.Fatalf("upgrade not applied: %+v", owner)
	}
	first := *owner.SubscriptionExpires

	// The same payment reference must not extend twice.
	if err := w.OnPaymentConfirmed(ctx, 5, models.PlanPremium, "pay-1"); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	owner, _ = dir.LookupByIdentity(ctx, 5)
	if !owner.SubscriptionExpires.Equal(first) {
		t.Fatalf("replayed reference extended the subscription: %v vs %v", owner.SubscriptionExpires, first)
	}
}

// Two confirmations racing for the same identity must produce exactly one
// owner; the loser treats the duplicate as success.
func TestOnPaymentConfirmedConcurrent(t *testing.T) {
	dir := newFakeDirectory()
	sender := newFakeSender()
	w, _, pending := newTestWizard(dir, sender)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		pending.Save(ctx, &models.PendingPayment{
			Identity: 5, Name: "Acme", Category: models.CategoryTech,
			Plan: models.PlanPremium, Ref: "ref-1", CreatedAt: time.Now(),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.OnPaymentConfirmed(ctx, 5, models.PlanPremium, "pay-1")
		}()
	}
	wg.Wait()

	if dir.count() != 1 {
		t.Fatalf("expected exactly one owner, got %d", dir.count())
	}
}
