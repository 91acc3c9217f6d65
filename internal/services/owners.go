package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/AnshRaj112/connectpro-relay/internal/database"
	"github.com/AnshRaj112/connectpro-relay/internal/models"
	"github.com/AnshRaj112/connectpro-relay/internal/relay"
)

const (
	ownerCacheKeyFormat = "owner:identity:%d"
	// paidCycleDays is one paid subscription cycle.
	paidCycleDays = 30
)

const ownerColumns = `id, identity, name, category, bio, logo_ref, plan, relay_mode,
	COALESCE(relay_token_enc, ''), active, verified, created_at,
	trial_ends, subscription_expires, trial_reminder_at, trial_expired_at,
	COALESCE(last_payment_ref, '')`

// OwnerService is the Owner Directory over PostgreSQL with a Redis
// read-through cache on identity lookups. It implements
// relay.OwnerDirectory, relay.TrialStore and relay.PendingPayments.
type OwnerService struct {
	cache CacheService
}

func NewOwnerService() *OwnerService { return &OwnerService{} }

func ownerCacheKey(identity int64) string {
	return fmt.Sprintf(ownerCacheKeyFormat, identity)
}

func scanOwner(row interface{ Scan(...interface{}) error }) (*models.Owner, error) {
	var o models.Owner
	var logoRef sql.NullString
	err := row.Scan(
		&o.ID, &o.Identity, &o.Name, &o.Category, &o.Bio, &logoRef,
		&o.Plan, &o.RelayMode, &o.RelayTokenEnc, &o.Active, &o.Verified,
		&o.CreatedAt, &o.TrialEnds, &o.SubscriptionExpires,
		&o.TrialReminderAt, &o.TrialExpiredAt, &o.LastPaymentRef,
	)
	if err != nil {
		return nil, err
	}
	if logoRef.Valid {
		o.LogoRef = &logoRef.String
	}
	return &o, nil
}

// LookupByIdentity returns (nil, nil) when no owner exists for identity.
func (s *OwnerService) LookupByIdentity(ctx context.Context, identity int64) (*models.Owner, error) {
	var cached models.Owner
	if hit, err := s.cache.Get(ownerCacheKey(identity), &cached); err == nil && hit {
		return &cached, nil
	}

	row := database.PostgresDB.QueryRowContext(ctx,
		`SELECT `+ownerColumns+` FROM owners WHERE identity = $1`, identity)
	owner, err := scanOwner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup owner %d: %w", identity, err)
	}

	if err := s.cache.Set(ownerCacheKey(identity), owner); err != nil {
		log.Printf("owner cache set failed: %v", err)
	}
	return owner, nil
}

// Create inserts exactly one owner per identity. The unique constraint on
// identity makes concurrent creates safe: the loser gets ErrDuplicateOwner.
func (s *OwnerService) Create(ctx context.Context, identity int64, profile relay.ProfileSnapshot, plan models.Plan, trialDays int) (*models.Owner, error) {
	now := time.Now().UTC()

	var trialEnds *time.Time
	var subscriptionExpires *time.Time
	switch {
	case plan == models.PlanTrial:
		t := now.AddDate(0, 0, trialDays)
		trialEnds = &t
	case plan == models.PlanPremium:
		t := now.AddDate(0, 0, paidCycleDays)
		subscriptionExpires = &t
	}

	var logoRef sql.NullString
	if profile.LogoRef != nil {
		logoRef = sql.NullString{String: *profile.LogoRef, Valid: true}
	}

	row := database.PostgresDB.QueryRowContext(ctx,
		`INSERT INTO owners (identity, name, category, bio, logo_ref, plan, relay_mode, active, created_at, trial_ends, subscription_expires)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9, $10)
		 ON CONFLICT (identity) DO NOTHING
		 RETURNING id`,
		identity, profile.Name, profile.Category, profile.Bio, logoRef,
		plan, models.RelayModeShared, now, trialEnds, subscriptionExpires)

	var id int64
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, relay.ErrDuplicateOwner
		}
		return nil, fmt.Errorf("create owner %d: %w", identity, err)
	}

	_ = s.cache.Delete(ownerCacheKey(identity))

	return &models.Owner{
		ID:                  id,
		Identity:            identity,
		Name:                profile.Name,
		Category:            profile.Category,
		Bio:                 profile.Bio,
		LogoRef:             profile.LogoRef,
		Plan:                plan,
		RelayMode:           models.RelayModeShared,
		Active:              true,
		CreatedAt:           now,
		TrialEnds:           trialEnds,
		SubscriptionExpires: subscriptionExpires,
	}, nil
}

// UpgradePlan applies one paid renewal, keyed by paymentRef: re-applying
// the same reference is a no-op rather than a second extension. The new
// expiry extends from the later of now and the current expiry, and any
// trial gating is cleared.
func (s *OwnerService) UpgradePlan(ctx context.Context, identity int64, plan models.Plan, paymentRef string, extensionDays int) error {
	res, err := database.PostgresDB.ExecContext(ctx,
		`UPDATE owners
		 SET plan = $2,
		     last_payment_ref = $3,
		     subscription_expires = GREATEST(COALESCE(subscription_expires, NOW()), NOW()) + make_interval(days => $4),
		     active = TRUE,
		     trial_ends = NULL,
		     trial_reminder_at = NULL,
		     trial_expired_at = NULL
		 WHERE identity = $1 AND last_payment_ref IS DISTINCT FROM $3`,
		identity, plan, paymentRef, extensionDays)
	if err != nil {
		return fmt.Errorf("upgrade owner %d: %w", identity, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the owner is missing or this exact payment was already
		// applied; only the former is an error.
		var exists bool
		err := database.PostgresDB.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM owners WHERE identity = $1)`, identity).Scan(&exists)
		if err != nil {
			return fmt.Errorf("upgrade owner %d: %w", identity, err)
		}
		if !exists {
			return relay.ErrOwnerNotFound
		}
		return nil
	}

	_ = s.cache.Delete(ownerCacheKey(identity))
	return nil
}

func (s *OwnerService) SetActive(ctx context.Context, ownerID int64, active bool) error {
	var identity int64
	err := database.PostgresDB.QueryRowContext(ctx,
		`UPDATE owners SET active = $2 WHERE id = $1 RETURNING identity`,
		ownerID, active).Scan(&identity)
	if err == sql.ErrNoRows {
		return relay.ErrOwnerNotFound
	}
	if err != nil {
		return fmt.Errorf("set active for owner %d: %w", ownerID, err)
	}
	_ = s.cache.Delete(ownerCacheKey(identity))
	return nil
}

// SetVerified toggles the administrative badge.
func (s *OwnerService) SetVerified(ctx context.Context, ownerID int64, verified bool) error {
	var identity int64
	err := database.PostgresDB.QueryRowContext(ctx,
		`UPDATE owners SET verified = $2 WHERE id = $1 RETURNING identity`,
		ownerID, verified).Scan(&identity)
	if err == sql.ErrNoRows {
		return relay.ErrOwnerNotFound
	}
	if err != nil {
		return fmt.Errorf("set verified for owner %d: %w", ownerID, err)
	}
	_ = s.cache.Delete(ownerCacheKey(identity))
	return nil
}

// SwitchToDedicated moves an owner to dedicated relay mode on a fresh
// trial. The token arrives already encrypted; the plaintext never reaches
// this layer.
func (s *OwnerService) SwitchToDedicated(ctx context.Context, identity int64, encryptedToken string, trialDays int) error {
	res, err := database.PostgresDB.ExecContext(ctx,
		`UPDATE owners
		 SET relay_mode = $2,
		     relay_token_enc = $3,
		     plan = $4,
		     trial_ends = NOW() + make_interval(days => $5),
		     trial_reminder_at = NULL,
		     trial_expired_at = NULL,
		     active = TRUE
		 WHERE identity = $1`,
		identity, models.RelayModeDedicated, encryptedToken, models.PlanTrial, trialDays)
	if err != nil {
		return fmt.Errorf("switch owner %d to dedicated: %w", identity, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return relay.ErrOwnerNotFound
	}
	_ = s.cache.Delete(ownerCacheKey(identity))
	return nil
}

// ListOwners returns all owners for the admin API, newest first.
func (s *OwnerService) ListOwners(ctx context.Context, limit int) ([]models.Owner, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := database.PostgresDB.QueryContext(ctx,
		`SELECT `+ownerColumns+` FROM owners ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var owners []models.Owner
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, err
		}
		owners = append(owners, *o)
	}
	return owners, rows.Err()
}

// --- relay.TrialStore ---

func (s *OwnerService) CountOwners(ctx context.Context) (int64, error) {
	var n int64
	err := database.PostgresDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM owners`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count owners: %w", err)
	}
	return n, nil
}

func (s *OwnerService) ListTrialGated(ctx context.Context) ([]models.Owner, error) {
	rows, err := database.PostgresDB.QueryContext(ctx,
		`SELECT `+ownerColumns+` FROM owners WHERE trial_ends IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list trial-gated owners: %w", err)
	}
	defer rows.Close()

	var owners []models.Owner
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, err
		}
		owners = append(owners, *o)
	}
	return owners, rows.Err()
}

func (s *OwnerService) ClaimTrialReminder(ctx context.Context, ownerID int64) (bool, error) {
	var identity int64
	err := database.PostgresDB.QueryRowContext(ctx,
		`UPDATE owners SET trial_reminder_at = NOW()
		 WHERE id = $1 AND trial_reminder_at IS NULL
		 RETURNING identity`, ownerID).Scan(&identity)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim trial reminder for owner %d: %w", ownerID, err)
	}
	_ = s.cache.Delete(ownerCacheKey(identity))
	return true, nil
}

func (s *OwnerService) ClaimTrialExpiry(ctx context.Context, ownerID int64) (bool, error) {
	var identity int64
	err := database.PostgresDB.QueryRowContext(ctx,
		`UPDATE owners SET trial_expired_at = NOW(), active = FALSE
		 WHERE id = $1 AND trial_expired_at IS NULL
		 RETURNING identity`, ownerID).Scan(&identity)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim trial expiry for owner %d: %w", ownerID, err)
	}
	_ = s.cache.Delete(ownerCacheKey(identity))
	return true, nil
}

// --- relay.PendingPayments ---

// Save upserts the pending record: restarting onboarding replaces the
// earlier selection.
func (s *OwnerService) Save(ctx context.Context, p *models.PendingPayment) error {
	var logoRef sql.NullString
	if p.LogoRef != nil {
		logoRef = sql.NullString{String: *p.LogoRef, Valid: true}
	}
	_, err := database.PostgresDB.ExecContext(ctx,
		`INSERT INTO pending_payments (identity, name, category, bio, logo_ref, plan, ref, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (identity) DO UPDATE SET
		   name = EXCLUDED.name, category = EXCLUDED.category, bio = EXCLUDED.bio,
		   logo_ref = EXCLUDED.logo_ref, plan = EXCLUDED.plan, ref = EXCLUDED.ref,
		   created_at = EXCLUDED.created_at`,
		p.Identity, p.Name, p.Category, p.Bio, logoRef, p.Plan, p.Ref, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("save pending payment for %d: %w", p.Identity, err)
	}
	return nil
}

// Take removes and returns the pending record; records older than maxAge
// are discarded and reported as absent.
func (s *OwnerService) Take(ctx context.Context, identity int64, maxAge time.Duration) (*models.PendingPayment, error) {
	row := database.PostgresDB.QueryRowContext(ctx,
		`DELETE FROM pending_payments WHERE identity = $1
		 RETURNING identity, name, category, bio, logo_ref, plan, ref, created_at`, identity)

	var p models.PendingPayment
	var logoRef sql.NullString
	err := row.Scan(&p.Identity, &p.Name, &p.Category, &p.Bio, &logoRef, &p.Plan, &p.Ref, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take pending payment for %d: %w", identity, err)
	}
	if logoRef.Valid {
		p.LogoRef = &logoRef.String
	}
	if time.Since(p.CreatedAt) > maxAge {
		return nil, nil
	}
	return &p, nil
}

// PurgeStalePending drops pending payments past the confirmation window.
func (s *OwnerService) PurgeStalePending(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := database.PostgresDB.ExecContext(ctx,
		`DELETE FROM pending_payments WHERE created_at < NOW() - make_interval(secs => $1)`,
		maxAge.Seconds())
	if err != nil {
		return 0, fmt.Errorf("purge stale pending payments: %w", err)
	}
	return res.RowsAffected()
}
