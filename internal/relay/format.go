package relay

import (
	"fmt"
	"time"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
	"github.com/AnshRaj112/connectpro-relay/internal/transport"
)

// Outbound copy lives here so the routing logic stays readable. Templating
// and localization are out of scope; these are plain format helpers.

func throttleText(interval time.Duration) string {
	return fmt.Sprintf("🚫 Slow down — please wait %d seconds between messages.", int(interval.Seconds()))
}

func helpText() string {
	return "👋 *Welcome to ConnectPro!*\n\n" +
		"Through this bot you can safely message channel and business owners.\n\n" +
		"1️⃣ If you came here via an owner's link, your messages go directly to them.\n" +
		"2️⃣ The owner replies to you privately — no personal info is shared.\n\n" +
		"Owners: use /owner to set up your own relay.\n\n" +
		"🔒 Privacy protected | ⚡ Fast replies"
}

func welcomeText(o *models.Owner) string {
	return fmt.Sprintf(
		"👋 Welcome! You're now connected to *%s*.\n\n📝 %s\n\nSend your message and they will reply privately.\n\n🔒 Your identity is protected.",
		o.Name, o.Bio)
}

func forwardText(displayName, body string) string {
	return fmt.Sprintf("📨 *New message*\n\n👤 From: %s\n\n💬 %s", displayName, body)
}

func replyText(body string) string {
	return fmt.Sprintf("📩 *Reply from the owner*\n\n%s", body)
}

func ownerDeepLink(botUsername string, identity int64) string {
	return fmt.Sprintf("t.me/%s?start=owner_%d", botUsername, identity)
}

func dashboardText(o *models.Owner, botUsername string) string {
	badge := ""
	if o.Verified {
		badge = " ✅"
	}
	expires := "—"
	switch {
	case o.TrialEnds != nil:
		expires = "trial until " + o.TrialEnds.Format("2006-01-02")
	case o.SubscriptionExpires != nil:
		expires = o.SubscriptionExpires.Format("2006-01-02")
	}
	return fmt.Sprintf(
		"📊 *%s*%s\nPlan: %s\nCategory: %s\nExpiry: %s\n\n🔗 Your link: `%s`",
		o.Name, badge, o.Plan, o.Category, expires, ownerDeepLink(botUsername, o.Identity))
}

func statsText(st Stats) string {
	return fmt.Sprintf(
		"📊 *Bot Statistics*\n\n👥 Total Owners: %d\n👤 Total Users: %d\n💬 Total Conversations: %d",
		st.Owners, st.EndUsers, st.Conversations)
}

func replyButton(userID int64) *transport.SendOpts {
	return &transport.SendOpts{
		Markdown: true,
		Buttons: [][]transport.Button{{
			{Label: "↩️ Reply", Data: fmt.Sprintf("reply_%d", userID)},
		}},
	}
}

func categoryKeyboard() *transport.SendOpts {
	rows := make([][]transport.Button, 0, (len(models.Categories)+1)/2)
	for i := 0; i < len(models.Categories); i += 2 {
		row := []transport.Button{{
			Label: string(models.Categories[i]),
			Data:  "cat_" + string(models.Categories[i]),
		}}
		if i+1 < len(models.Categories) {
			row = append(row, transport.Button{
				Label: string(models.Categories[i+1]),
				Data:  "cat_" + string(models.Categories[i+1]),
			})
		}
		rows = append(rows, row)
	}
	return &transport.SendOpts{Markdown: true, Buttons: rows}
}

func planKeyboard() *transport.SendOpts {
	return &transport.SendOpts{
		Markdown: true,
		Buttons: [][]transport.Button{
			{{Label: "🆓 Basic (Free)", Data: "plan_basic"}},
			{{Label: "⭐ Premium ($9.99/mo)", Data: "plan_premium"}},
		},
	}
}

func payKeyboard(url string) *transport.SendOpts {
	return &transport.SendOpts{
		Markdown: true,
		Buttons: [][]transport.Button{
			{{Label: "💳 Pay Now", URL: url}},
		},
	}
}

var markdown = &transport.SendOpts{Markdown: true}
