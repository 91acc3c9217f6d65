package models

import (
	"strings"
	"time"
)

// Plan is the subscription plan an owner is on.
type Plan string

const (
	PlanFreeShared      Plan = "free_shared"
	PlanBasic           Plan = "basic"
	PlanPremium         Plan = "premium"
	PlanLifetimeBasic   Plan = "lifetime_basic"
	PlanLifetimePremium Plan = "lifetime_premium"
	PlanTrial           Plan = "trial"
)

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanFreeShared, PlanBasic, PlanPremium, PlanLifetimeBasic, PlanLifetimePremium, PlanTrial:
		return true
	}
	return false
}

// Lifetime plans are never expiry-gated.
func (p Plan) Lifetime() bool {
	return p == PlanLifetimeBasic || p == PlanLifetimePremium
}

// RequiresPayment reports whether selecting p during onboarding goes through
// the payment flow instead of creating the owner immediately.
func (p Plan) RequiresPayment() bool {
	return p == PlanPremium
}

// ParsePlan parses user/webhook input into a Plan.
func ParsePlan(s string) (Plan, bool) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if p.Valid() {
		return p, true
	}
	return "", false
}

// Category is the owner's business category.
type Category string

const (
	CategoryTech      Category = "Tech"
	CategoryEducation Category = "Education"
	CategoryEcommerce Category = "Ecommerce"
	CategoryCreative  Category = "Creative"
	CategoryNews      Category = "News"
	CategoryOther     Category = "Other"
)

// Categories lists every selectable category in display order.
var Categories = []Category{
	CategoryTech,
	CategoryEducation,
	CategoryEcommerce,
	CategoryCreative,
	CategoryNews,
	CategoryOther,
}

// ParseCategory matches input (case-insensitive, tolerating "e-commerce" and
// "news/media" spellings) against the fixed category set.
func ParseCategory(s string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "")
	switch normalized {
	case "tech":
		return CategoryTech, true
	case "education":
		return CategoryEducation, true
	case "ecommerce":
		return CategoryEcommerce, true
	case "creative":
		return CategoryCreative, true
	case "news", "news/media":
		return CategoryNews, true
	case "other":
		return CategoryOther, true
	}
	return "", false
}

// RelayMode says whether the owner receives messages through the shared bot
// or through their own dedicated bot token.
type RelayMode string

const (
	RelayModeShared    RelayMode = "shared"
	RelayModeDedicated RelayMode = "dedicated"
)

// Owner is a registered business/channel operator. Exactly one row exists
// per external identity.
type Owner struct {
	ID        int64     `json:"id"`
	Identity  int64     `json:"identity"` // external chat sender id, unique
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Bio       string    `json:"bio"`
	LogoRef   *string   `json:"logo_ref,omitempty"`
	Plan      Plan      `json:"plan"`
	RelayMode RelayMode `json:"relay_mode"`
	Active    bool      `json:"active"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`

	// TrialEnds is nil when the plan has no trial gating (free_shared,
	// lifetime plans). SubscriptionExpires is nil until a paid cycle exists.
	TrialEnds           *time.Time `json:"trial_ends,omitempty"`
	SubscriptionExpires *time.Time `json:"subscription_expires,omitempty"`

	// TrialReminderAt / TrialExpiredAt record that the one-time trial
	// notices were sent, so sweeps never re-notify.
	TrialReminderAt *time.Time `json:"-"`
	TrialExpiredAt  *time.Time `json:"-"`

	// RelayTokenEnc holds the AES-encrypted dedicated bot token.
	// Sensitive: never logged, never serialized.
	RelayTokenEnc string `json:"-"`

	// LastPaymentRef dedupes plan upgrades: re-applying the same payment
	// reference is a no-op.
	LastPaymentRef string `json:"-"`
}
