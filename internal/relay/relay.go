// Package relay is the message-routing and session-state engine: it decides
// who each inbound event is from in business terms, who it must reach, what
// state transition applies, and which side effects fire. Storage and chat
// transport are collaborators behind the interfaces below.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
)

var (
	ErrDuplicateOwner        = errors.New("owner already exists for identity")
	ErrOwnerNotFound         = errors.New("owner not found")
	ErrInvalidStepTransition = errors.New("invalid onboarding step transition")
	ErrIncompleteOnboarding  = errors.New("onboarding missing required fields")
)

// OwnerDirectory is the authoritative record of onboarded owners.
type OwnerDirectory interface {
	// LookupByIdentity returns (nil, nil) when no owner exists for identity.
	LookupByIdentity(ctx context.Context, identity int64) (*models.Owner, error)
	// Create fails with ErrDuplicateOwner when the identity is already
	// registered. trialDays only applies to plans that require a trial.
	Create(ctx context.Context, identity int64, profile ProfileSnapshot, plan models.Plan, trialDays int) (*models.Owner, error)
	// UpgradePlan is idempotent per paymentRef: re-applying the same
	// reference never double-extends. Fails with ErrOwnerNotFound.
	UpgradePlan(ctx context.Context, identity int64, plan models.Plan, paymentRef string, extensionDays int) error
	SetActive(ctx context.Context, ownerID int64, active bool) error
	// SwitchToDedicated moves an owner to dedicated relay mode on a fresh
	// trial, storing the encrypted bot token.
	SwitchToDedicated(ctx context.Context, identity int64, encryptedToken string, trialDays int) error
}

// EndUserStore creates end users lazily on first contact.
type EndUserStore interface {
	Touch(ctx context.Context, identity int64, firstName, lastName, handle string) (*models.EndUser, error)
}

// MessageLog is the durable log of routed user→owner messages.
type MessageLog interface {
	Append(ctx context.Context, rec *models.MessageRecord) error
	// ForOwner returns the owner's records in original insertion order.
	ForOwner(ctx context.Context, ownerID int64) ([]models.MessageRecord, error)
}

// PendingPayments stores assembled premium profiles awaiting confirmation.
type PendingPayments interface {
	Save(ctx context.Context, p *models.PendingPayment) error
	// Take removes and returns the pending record for identity, or
	// (nil, nil) when none exists or the record is older than maxAge.
	Take(ctx context.Context, identity int64, maxAge time.Duration) (*models.PendingPayment, error)
}

// PaymentLinker produces gateway checkout URLs.
type PaymentLinker interface {
	GenerateLink(identity int64, plan models.Plan) string
}

// LogoMirror re-hosts a platform photo reference and returns a stable URL.
type LogoMirror interface {
	Mirror(ctx context.Context, fileRef string) (string, error)
}

// TokenValidator checks a dedicated bot token against the chat platform.
type TokenValidator func(ctx context.Context, token string) bool

// Stats are the aggregate counts shown on the admin surfaces.
type Stats struct {
	Owners        int64 `json:"owners"`
	EndUsers      int64 `json:"end_users"`
	Conversations int64 `json:"conversations"`
}

// StatsSource reports aggregate relay counts.
type StatsSource interface {
	Stats(ctx context.Context) (Stats, error)
}

// relayActive reports whether the owner's relay currently accepts traffic:
// the active flag is set and no applicable expiry has passed. Lifetime and
// free-shared plans are never expiry-gated.
func relayActive(o *models.Owner, now time.Time) bool {
	if o == nil || !o.Active {
		return false
	}
	if o.Plan.Lifetime() || o.Plan == models.PlanFreeShared {
		return true
	}
	if o.TrialEnds != nil && now.After(*o.TrialEnds) {
		return false
	}
	if o.SubscriptionExpires != nil && now.After(*o.SubscriptionExpires) {
		return false
	}
	return true
}
