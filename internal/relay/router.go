package relay

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
	"github.com/AnshRaj112/connectpro-relay/internal/transport"
)

const routerStripes = 256

// Router classifies every inbound event and dispatches it: onboarding step,
// user→owner forward, owner→user reply, or fallback help. Events from the
// same sender are serialized on a striped lock so concurrent arrivals can
// never interleave step transitions or limiter reads.
type Router struct {
	sessions *SessionStore
	spam     *AntiSpam
	dir      OwnerDirectory
	users    EndUserStore
	msgs     MessageLog
	wizard   *Wizard
	sender   transport.Sender

	validateToken TokenValidator // nil disables /minibot
	encryptToken  func(string) (string, error)

	admins map[int64]struct{} // senders allowed to use admin commands
	stats  StatsSource

	botUsername string
	trialDays   int
	now         func() time.Time

	stripes [routerStripes]sync.Mutex
}

type RouterConfig struct {
	Sessions *SessionStore
	Spam     *AntiSpam
	Dir      OwnerDirectory
	Users    EndUserStore
	Msgs     MessageLog
	Wizard   *Wizard
	Sender   transport.Sender

	ValidateToken TokenValidator
	EncryptToken  func(string) (string, error)

	AdminIDs []int64
	Stats    StatsSource

	BotUsername string
	TrialDays   int
	Now         func() time.Time
}

func NewRouter(cfg RouterConfig) *Router {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	admins := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = struct{}{}
	}
	return &Router{
		sessions:      cfg.Sessions,
		spam:          cfg.Spam,
		dir:           cfg.Dir,
		users:         cfg.Users,
		msgs:          cfg.Msgs,
		wizard:        cfg.Wizard,
		sender:        cfg.Sender,
		validateToken: cfg.ValidateToken,
		encryptToken:  cfg.EncryptToken,
		admins:        admins,
		stats:         cfg.Stats,
		botUsername:   cfg.BotUsername,
		trialDays:     cfg.TrialDays,
		now:           now,
	}
}

// Handle processes one inbound event end to end. It never panics the
// process over a delivery failure; errors surface as user-visible messages.
func (r *Router) Handle(ctx context.Context, ev transport.Event) {
	stripe := &r.stripes[uint64(ev.SenderID)%routerStripes]
	stripe.Lock()
	defer stripe.Unlock()

	// 1. Throttle. Rejections are side-effect free beyond the notice.
	if !r.spam.Allow(ev.SenderID, r.now()) {
		r.say(ctx, ev.ChatID, throttleText(r.spam.MinInterval()), nil)
		return
	}

	// 2. An active wizard owns all input until it finishes or is cancelled.
	if sess := r.sessions.Get(ev.SenderID); sess.Step != StepNone {
		r.wizard.HandleEvent(ctx, ev, sess)
		return
	}

	// Owner tapping the reply affordance under a forwarded message.
	if strings.HasPrefix(ev.CallbackData, "reply_") {
		r.handleReplyButton(ctx, ev)
		return
	}

	if cmd, arg := ev.Command(); cmd != "" {
		r.handleCommand(ctx, ev, cmd, arg)
		return
	}

	// 3. Owner with an armed reply target: the next text message is the
	// reply. Non-text events leave the target armed.
	if strings.TrimSpace(ev.Text) != "" {
		if target, ok := r.sessions.TakePendingReply(ev.SenderID); ok {
			r.deliverOwnerReply(ctx, ev, target)
			return
		}
	} else if r.sessions.HasPendingReply(ev.SenderID) {
		r.say(ctx, ev.ChatID, "✍ Reply with a text message.", nil)
		return
	}

	// 4. Deep-link entry (also reachable via /start owner_<id>).
	if strings.HasPrefix(ev.DeepLinkArg, "owner_") {
		r.handleDeepLink(ctx, ev, ev.DeepLinkArg)
		return
	}

	// 5. Bound user: persist then forward.
	if sess := r.sessions.Get(ev.SenderID); sess.BoundOwnerIdentity != nil {
		r.forwardToOwner(ctx, ev, *sess.BoundOwnerIdentity)
		return
	}

	// 6. Nothing matched.
	r.say(ctx, ev.ChatID, helpText(), markdown)
}

func (r *Router) handleCommand(ctx context.Context, ev transport.Event, cmd, arg string) {
	switch cmd {
	case "start":
		if strings.HasPrefix(arg, "owner_") {
			r.handleDeepLink(ctx, ev, arg)
			return
		}
		r.say(ctx, ev.ChatID, helpText(), markdown)
	case "help":
		r.say(ctx, ev.ChatID, helpText(), markdown)
	case "owner":
		r.wizard.Begin(ctx, ev)
	case "dashboard":
		r.handleDashboard(ctx, ev)
	case "export":
		r.handleExport(ctx, ev)
	case "minibot":
		r.handleMiniBot(ctx, ev, arg)
	case "stats":
		r.handleStats(ctx, ev)
	case "cancel":
		r.say(ctx, ev.ChatID, "Nothing to cancel.", nil)
	default:
		r.say(ctx, ev.ChatID, helpText(), markdown)
	}
}

// handleDeepLink binds the sender to the referenced owner for the duration
// of their conversation.
func (r *Router) handleDeepLink(ctx context.Context, ev transport.Event, arg string) {
	identity, err := strconv.ParseInt(strings.TrimPrefix(arg, "owner_"), 10, 64)
	if err != nil {
		r.say(ctx, ev.ChatID, helpText(), markdown)
		return
	}

	owner, err := r.dir.LookupByIdentity(ctx, identity)
	if err != nil {
		r.say(ctx, ev.ChatID, "⚠️ Something went wrong. Please try again later.", nil)
		return
	}
	if owner == nil {
		r.say(ctx, ev.ChatID, "❌ Owner not found. Please check the link and try again.", nil)
		return
	}
	if !relayActive(owner, r.now()) {
		r.say(ctx, ev.ChatID, "⚠️ This owner's relay is currently inactive.", nil)
		return
	}

	if _, err := r.users.Touch(ctx, ev.SenderID, ev.FirstName, ev.LastName, ev.Handle); err != nil {
		log.Printf("end user touch for %d failed: %v", ev.SenderID, err)
	}
	r.sessions.BindOwner(ev.SenderID, owner.Identity)
	r.say(ctx, ev.ChatID, welcomeText(owner), markdown)
}

// forwardToOwner is the user→owner path: persist the record first, forward
// second, so a storage failure can never produce an unlogged delivery.
func (r *Router) forwardToOwner(ctx context.Context, ev transport.Event, ownerIdentity int64) {
	owner, err := r.dir.LookupByIdentity(ctx, ownerIdentity)
	if err != nil {
		r.say(ctx, ev.ChatID, "⚠️ Something went wrong. Please try again later.", nil)
		return
	}
	if owner == nil || !relayActive(owner, r.now()) {
		r.sessions.ClearBinding(ev.SenderID)
		r.say(ctx, ev.ChatID, "⚠️ This owner's relay is currently inactive.", nil)
		return
	}

	body := ev.Text
	if body == "" && ev.PhotoRef != "" {
		body = "[media message]"
	}
	if body == "" {
		r.say(ctx, ev.ChatID, "✍ Send a text message and it will be forwarded.", nil)
		return
	}

	rec := &models.MessageRecord{
		OwnerID:   owner.ID,
		SenderID:  ev.SenderID,
		Body:      body,
		Timestamp: r.now().UTC(),
	}
	if err := r.msgs.Append(ctx, rec); err != nil {
		log.Printf("message persist for owner %d failed: %v", owner.ID, err)
		r.say(ctx, ev.ChatID, "⚠️ Could not accept your message right now. Please try again.", nil)
		return
	}

	user, err := r.users.Touch(ctx, ev.SenderID, ev.FirstName, ev.LastName, ev.Handle)
	display := "Anonymous"
	if err == nil && user != nil {
		display = user.DisplayName()
	}

	if err := r.sender.SendText(ctx, owner.Identity, forwardText(display, body), replyButton(ev.SenderID)); err != nil {
		log.Printf("forward to owner %d failed: %v", owner.Identity, err)
		r.say(ctx, ev.ChatID, "❌ Failed to deliver your message. The owner may have blocked the bot.", nil)
		return
	}
	r.say(ctx, ev.ChatID, "✅ Message sent! The owner will reply soon.", nil)
}

// handleReplyButton arms the single-shot reply target for the owner.
func (r *Router) handleReplyButton(ctx context.Context, ev transport.Event) {
	target, err := strconv.ParseInt(strings.TrimPrefix(ev.CallbackData, "reply_"), 10, 64)
	if err != nil {
		return
	}

	owner, err := r.dir.LookupByIdentity(ctx, ev.SenderID)
	if err != nil || owner == nil {
		r.say(ctx, ev.ChatID, "❌ Only registered owners can reply here.", nil)
		return
	}
	if !relayActive(owner, r.now()) {
		r.say(ctx, ev.ChatID, "⛔ Your trial or subscription has expired — upgrade to keep replying.", nil)
		return
	}

	r.sessions.SetPendingReply(ev.SenderID, target)
	r.say(ctx, ev.ChatID, "✍ Send your reply:", nil)
}

// deliverOwnerReply forwards the owner's text verbatim to the armed target.
// The target was already consumed; a delivery failure is reported, not
// retried, and does not re-arm it.
func (r *Router) deliverOwnerReply(ctx context.Context, ev transport.Event, target int64) {
	if err := r.sender.SendText(ctx, target, replyText(ev.Text), markdown); err != nil {
		log.Printf("owner reply to %d failed: %v", target, err)
		r.say(ctx, ev.ChatID, "❌ Could not deliver your reply. The user may have blocked the bot.", nil)
		return
	}
	r.say(ctx, ev.ChatID, "✅ Reply sent.", nil)
}

// handleStats shows aggregate counts. Admin-only, keyed by sender identity.
func (r *Router) handleStats(ctx context.Context, ev transport.Event) {
	if _, ok := r.admins[ev.SenderID]; !ok {
		r.say(ctx, ev.ChatID, "⛔ Unauthorized: Admin access required.", nil)
		return
	}
	if r.stats == nil {
		r.say(ctx, ev.ChatID, "⚠️ Statistics are not available right now.", nil)
		return
	}
	st, err := r.stats.Stats(ctx)
	if err != nil {
		r.say(ctx, ev.ChatID, "⚠️ Could not load statistics right now.", nil)
		return
	}
	r.say(ctx, ev.ChatID, statsText(st), markdown)
}

func (r *Router) handleDashboard(ctx context.Context, ev transport.Event) {
	owner, err := r.dir.LookupByIdentity(ctx, ev.SenderID)
	if err != nil {
		r.say(ctx, ev.ChatID, "⚠️ Something went wrong. Please try again later.", nil)
		return
	}
	if owner == nil {
		r.say(ctx, ev.ChatID, "❌ You don't have an account yet. Use /owner to create one.", nil)
		return
	}
	r.say(ctx, ev.ChatID, dashboardText(owner, r.botUsername), markdown)
}

// handleExport sends the owner their full conversation log as a JSON
// document.
func (r *Router) handleExport(ctx context.Context, ev transport.Event) {
	owner, err := r.dir.LookupByIdentity(ctx, ev.SenderID)
	if err != nil {
		r.say(ctx, ev.ChatID, "⚠️ Something went wrong. Please try again later.", nil)
		return
	}
	if owner == nil {
		r.say(ctx, ev.ChatID, "❌ Only registered owners can export their history.", nil)
		return
	}

	records, err := r.msgs.ForOwner(ctx, owner.ID)
	if err != nil {
		r.say(ctx, ev.ChatID, "⚠️ Could not load your history right now.", nil)
		return
	}
	data, err := EncodeExport(records)
	if err != nil {
		r.say(ctx, ev.ChatID, "⚠️ Could not build your export right now.", nil)
		return
	}

	if err := r.sender.SendDocument(ctx, ev.ChatID, data, "ChatExport_ConnectPro.json", "📁 Here is your chat export."); err != nil {
		log.Printf("export delivery to %d failed: %v", ev.ChatID, err)
		r.say(ctx, ev.ChatID, "❌ Could not deliver the export document.", nil)
	}
}

// handleMiniBot switches a registered owner to dedicated relay mode on a
// fresh trial. The token is validated against the platform and stored
// encrypted; it is never echoed or logged.
func (r *Router) handleMiniBot(ctx context.Context, ev transport.Event, token string) {
	if r.validateToken == nil || r.encryptToken == nil {
		r.say(ctx, ev.ChatID, "🚧 Dedicated bot mode is not available on this deployment.", nil)
		return
	}
	owner, err := r.dir.LookupByIdentity(ctx, ev.SenderID)
	if err != nil || owner == nil {
		r.say(ctx, ev.ChatID, "❌ Register with /owner before linking your own bot.", nil)
		return
	}
	token = strings.TrimSpace(token)
	if token == "" {
		r.say(ctx, ev.ChatID, "🤖 Usage: /minibot <bot token from @BotFather>", nil)
		return
	}
	if !r.validateToken(ctx, token) {
		r.say(ctx, ev.ChatID, "❌ Invalid bot token. Please check it and send again.", nil)
		return
	}

	enc, err := r.encryptToken(token)
	if err != nil {
		r.say(ctx, ev.ChatID, "⚠️ Could not store your token securely. Please try again later.", nil)
		return
	}
	if err := r.dir.SwitchToDedicated(ctx, ev.SenderID, enc, r.trialDays); err != nil {
		r.say(ctx, ev.ChatID, "⚠️ Could not link your bot right now. Please try again later.", nil)
		return
	}

	ends := r.now().AddDate(0, 0, r.trialDays)
	r.say(ctx, ev.ChatID, fmt.Sprintf(
		"🎉 *Your dedicated bot is linked!*\n\n🆓 Free trial active until `%s`.",
		ends.Format("2006-01-02")), markdown)
}

func (r *Router) say(ctx context.Context, chatID int64, text string, opts *transport.SendOpts) {
	if err := r.sender.SendText(ctx, chatID, text, opts); err != nil {
		log.Printf("send to %d failed: %v", chatID, err)
	}
}
