package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
	"github.com/AnshRaj112/connectpro-relay/internal/transport"
)

const (
	maxBioRunes  = 500
	minNameRunes = 2
)

// Wizard drives the multi-step onboarding flow that turns an end user into
// a registered Owner: name → category → bio → logo → plan → payment.
// Invalid input re-prompts without advancing; side effects (the single
// Owner Directory create) only fire at completion or payment confirmation.
type Wizard struct {
	sessions *SessionStore
	dir      OwnerDirectory
	pending  PendingPayments
	payments PaymentLinker
	logos    LogoMirror // optional, nil disables mirroring
	sender   transport.Sender

	pendingTTL  time.Duration
	botUsername string
}

func NewWizard(sessions *SessionStore, dir OwnerDirectory, pending PendingPayments, payments PaymentLinker, logos LogoMirror, sender transport.Sender, pendingTTL time.Duration, botUsername string) *Wizard {
	return &Wizard{
		sessions:    sessions,
		dir:         dir,
		pending:     pending,
		payments:    payments,
		logos:       logos,
		sender:      sender,
		pendingTTL:  pendingTTL,
		botUsername: botUsername,
	}
}

// Begin starts the wizard, unless the sender already owns a relay.
func (w *Wizard) Begin(ctx context.Context, ev transport.Event) {
	existing, err := w.dir.LookupByIdentity(ctx, ev.SenderID)
	if err != nil {
		w.say(ctx, ev.ChatID, "⚠️ Something went wrong. Please try again later.", nil)
		return
	}
	if existing != nil {
		w.say(ctx, ev.ChatID, "⚠️ You already have an account. Use /dashboard to manage it.", nil)
		return
	}
	w.sessions.BeginOnboarding(ev.SenderID)
	w.say(ctx, ev.ChatID, "1️⃣ *Step 1/5*\n\nEnter your business or channel name:", markdown)
}

// HandleEvent routes one inbound event to the current step's handler.
// Callers only invoke this when the sender has an active onboarding step.
func (w *Wizard) HandleEvent(ctx context.Context, ev transport.Event, sess Session) {
	if cmd, _ := ev.Command(); cmd == "cancel" {
		w.sessions.AbandonOnboarding(ev.SenderID)
		w.say(ctx, ev.ChatID, "❌ Setup cancelled. Use /owner to start again.", nil)
		return
	}

	switch sess.Step {
	case StepName:
		w.handleName(ctx, ev)
	case StepCategory:
		w.handleCategory(ctx, ev)
	case StepBio:
		w.handleBio(ctx, ev)
	case StepLogo:
		w.handleLogo(ctx, ev)
	case StepPlan:
		w.handlePlan(ctx, ev)
	case StepPaymentPending:
		w.say(ctx, ev.ChatID, "💳 Your payment is still pending. Complete it to activate your account, or /cancel to start over.", nil)
	}
}

func (w *Wizard) handleName(ctx context.Context, ev transport.Event) {
	name := strings.TrimSpace(ev.Text)
	if runeLen(name) < minNameRunes {
		w.say(ctx, ev.ChatID, "❌ Name too short. Please enter a valid name.", nil)
		return
	}
	if err := w.sessions.AdvanceStep(ev.SenderID, StepCategory, func(p *ProfileSnapshot) {
		p.Name = name
	}); err != nil {
		w.reprompt(ctx, ev)
		return
	}
	w.say(ctx, ev.ChatID, "2️⃣ *Step 2/5*\n\nChoose your category:", categoryKeyboard())
}

func (w *Wizard) handleCategory(ctx context.Context, ev transport.Event) {
	input := ev.Text
	if strings.HasPrefix(ev.CallbackData, "cat_") {
		input = strings.TrimPrefix(ev.CallbackData, "cat_")
	}
	category, ok := models.ParseCategory(input)
	if !ok {
		w.say(ctx, ev.ChatID, "❌ Please pick one of the listed categories.", categoryKeyboard())
		return
	}
	if err := w.sessions.AdvanceStep(ev.SenderID, StepBio, func(p *ProfileSnapshot) {
		p.Category = category
	}); err != nil {
		w.reprompt(ctx, ev)
		return
	}
	w.say(ctx, ev.ChatID, "3️⃣ *Step 3/5*\n\nAdd a short bio/description (max 500 characters):", markdown)
}

func (w *Wizard) handleBio(ctx context.Context, ev transport.Event) {
	bio := strings.TrimSpace(ev.Text)
	if bio == "" {
		w.say(ctx, ev.ChatID, "✍ Please send a short bio for your profile.", nil)
		return
	}
	// Over-length bios are truncated silently, not rejected.
	bio = truncateRunes(bio, maxBioRunes)
	if err := w.sessions.AdvanceStep(ev.SenderID, StepLogo, func(p *ProfileSnapshot) {
		p.Bio = bio
	}); err != nil {
		w.reprompt(ctx, ev)
		return
	}
	w.say(ctx, ev.ChatID, "4️⃣ *Step 4/5*\n\nUpload a logo (send as image), or type *skip* to continue without one.", markdown)
}

func (w *Wizard) handleLogo(ctx context.Context, ev transport.Event) {
	var logoRef *string

	switch {
	case ev.PhotoRef != "":
		ref := ev.PhotoRef
		if w.logos != nil {
			if url, err := w.logos.Mirror(ctx, ev.PhotoRef); err == nil {
				ref = url
			} else {
				log.Printf("logo mirror failed, keeping platform ref: %v", err)
			}
		}
		logoRef = &ref
	case isSkip(ev):
		// proceed without a logo
	default:
		w.say(ctx, ev.ChatID, "❌ No photo detected. Send an image or type *skip*.", markdown)
		return
	}

	if err := w.sessions.AdvanceStep(ev.SenderID, StepPlan, func(p *ProfileSnapshot) {
		p.LogoRef = logoRef
	}); err != nil {
		w.reprompt(ctx, ev)
		return
	}
	w.say(ctx, ev.ChatID,
		"5️⃣ *Step 5/5*\n\n*Choose a plan:*\n\n🆓 *Basic* — free, shared bot, ConnectPro branding\n⭐ *Premium* — $9.99/mo, custom branding, priority support",
		planKeyboard())
}

func (w *Wizard) handlePlan(ctx context.Context, ev transport.Event) {
	input := ev.Text
	if strings.HasPrefix(ev.CallbackData, "plan_") {
		input = strings.TrimPrefix(ev.CallbackData, "plan_")
	}
	plan, ok := models.ParsePlan(input)
	if !ok || (plan != models.PlanBasic && plan != models.PlanPremium) {
		w.say(ctx, ev.ChatID, "❌ Please choose Basic or Premium.", planKeyboard())
		return
	}

	if plan == models.PlanBasic {
		w.completeBasic(ctx, ev)
		return
	}
	w.beginPayment(ctx, ev, plan)
}

func (w *Wizard) completeBasic(ctx context.Context, ev transport.Event) {
	snap, err := w.sessions.CompleteOnboarding(ev.SenderID)
	if err != nil {
		w.say(ctx, ev.ChatID, "⚠️ Setup is incomplete. Use /owner to start again.", nil)
		w.sessions.AbandonOnboarding(ev.SenderID)
		return
	}

	owner, err := w.dir.Create(ctx, ev.SenderID, snap, models.PlanBasic, 0)
	if errors.Is(err, ErrDuplicateOwner) {
		w.say(ctx, ev.ChatID, "⚠️ You already have an account. Use /dashboard to manage it.", nil)
		return
	}
	if err != nil {
		w.say(ctx, ev.ChatID, "⚠️ Could not create your account right now. Please try again later.", nil)
		return
	}

	w.say(ctx, ev.ChatID, fmt.Sprintf(
		"✅ *Basic plan activated!*\n\nYour link: `%s`\n\nShare it in your channel bio or posts — anyone who clicks can message you anonymously.\n\nUse /dashboard to manage your relay.",
		ownerDeepLink(w.botUsername, owner.Identity)), markdown)
}

func (w *Wizard) beginPayment(ctx context.Context, ev transport.Event, plan models.Plan) {
	if err := w.sessions.AdvanceStep(ev.SenderID, StepPaymentPending, nil); err != nil {
		w.reprompt(ctx, ev)
		return
	}

	sess := w.sessions.Get(ev.SenderID)
	if sess.Draft.Name == "" || sess.Draft.Category == "" {
		w.sessions.AbandonOnboarding(ev.SenderID)
		w.say(ctx, ev.ChatID, "⚠️ Setup is incomplete. Use /owner to start again.", nil)
		return
	}

	record := &models.PendingPayment{
		Identity:  ev.SenderID,
		Name:      sess.Draft.Name,
		Category:  sess.Draft.Category,
		Bio:       sess.Draft.Bio,
		LogoRef:   sess.Draft.LogoRef,
		Plan:      plan,
		Ref:       uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := w.pending.Save(ctx, record); err != nil {
		w.sessions.AbandonOnboarding(ev.SenderID)
		w.say(ctx, ev.ChatID, "⚠️ Could not start the payment flow. Please try again later.", nil)
		return
	}

	link := w.payments.GenerateLink(ev.SenderID, plan)
	w.say(ctx, ev.ChatID,
		"💳 *Complete Payment*\n\nClick below to pay securely. Your account activates automatically after payment.",
		payKeyboard(link))
}

// OnPaymentConfirmed resolves the PAYMENT_PENDING step from a validated
// gateway webhook. For a first-time owner it creates the account from the
// pending record (30-day paid cycle); for an existing owner it extends the
// subscription, deduplicated by payment reference.
func (w *Wizard) OnPaymentConfirmed(ctx context.Context, identity int64, plan models.Plan, paymentRef string) error {
	existing, err := w.dir.LookupByIdentity(ctx, identity)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := w.dir.UpgradePlan(ctx, identity, plan, paymentRef, 30); err != nil {
			return err
		}
		w.say(ctx, identity, "✅ *Payment received!* Your subscription has been extended by 30 days.", markdown)
		return nil
	}

	record, err := w.pending.Take(ctx, identity, w.pendingTTL)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("no pending payment for identity %d: %w", identity, ErrOwnerNotFound)
	}

	snap := ProfileSnapshot{
		Name:     record.Name,
		Category: record.Category,
		Bio:      record.Bio,
		LogoRef:  record.LogoRef,
	}
	owner, err := w.dir.Create(ctx, identity, snap, plan, 0)
	if errors.Is(err, ErrDuplicateOwner) {
		// Lost a race with a concurrent completion; the single create
		// already happened.
		return nil
	}
	if err != nil {
		return err
	}

	w.sessions.AbandonOnboarding(identity)
	w.say(ctx, identity, fmt.Sprintf(
		"🎉 *Premium activated!*\n\nYour link: `%s`\n\nUse /dashboard to manage your relay.",
		ownerDeepLink(w.botUsername, owner.Identity)), markdown)
	return nil
}

// reprompt re-sends the prompt for the user's current step after a
// transition was refused (e.g. concurrent events raced).
func (w *Wizard) reprompt(ctx context.Context, ev transport.Event) {
	sess := w.sessions.Get(ev.SenderID)
	switch sess.Step {
	case StepName:
		w.say(ctx, ev.ChatID, "1️⃣ *Step 1/5*\n\nEnter your business or channel name:", markdown)
	case StepCategory:
		w.say(ctx, ev.ChatID, "2️⃣ *Step 2/5*\n\nChoose your category:", categoryKeyboard())
	case StepBio:
		w.say(ctx, ev.ChatID, "3️⃣ *Step 3/5*\n\nAdd a short bio/description (max 500 characters):", markdown)
	case StepLogo:
		w.say(ctx, ev.ChatID, "4️⃣ *Step 4/5*\n\nUpload a logo (send as image), or type *skip*.", markdown)
	case StepPlan:
		w.say(ctx, ev.ChatID, "5️⃣ *Step 5/5*\n\nChoose a plan:", planKeyboard())
	default:
		w.say(ctx, ev.ChatID, "Use /owner to start the setup.", nil)
	}
}

func (w *Wizard) say(ctx context.Context, chatID int64, text string, opts *transport.SendOpts) {
	if err := w.sender.SendText(ctx, chatID, text, opts); err != nil {
		log.Printf("onboarding send to %d failed: %v", chatID, err)
	}
}

func isSkip(ev transport.Event) bool {
	if cmd, _ := ev.Command(); cmd == "skip" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(ev.Text), "skip")
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

func truncateRunes(s string, max int) string {
	if runeLen(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
