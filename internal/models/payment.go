package models

import "time"

// PendingPayment is an assembled onboarding profile awaiting external
// payment confirmation. It is not yet an Owner. Records older than the
// pending-payment window are rejected at confirmation time and purged by
// the retention sweeper.
type PendingPayment struct {
	Identity  int64     `json:"identity"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Bio       string    `json:"bio"`
	LogoRef   *string   `json:"logo_ref,omitempty"`
	Plan      Plan      `json:"plan"`
	Ref       string    `json:"ref"` // payment reference handed to the gateway
	CreatedAt time.Time `json:"created_at"`
}
