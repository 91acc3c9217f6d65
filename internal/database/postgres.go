package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL database
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	// Set connection pool settings
	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err = PostgresDB.Ping(); err != nil {
		return err
	}

	log.Println("✅ Connected to PostgreSQL")

	// Initialize tables
	if err = InitPostgresTables(); err != nil {
		return err
	}

	return nil
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables() error {
	queries := []string{
		// Owners table: one row per external identity. The UNIQUE constraint
		// on identity is what makes concurrent onboarding completions safe.
		`CREATE TABLE IF NOT EXISTS owners (
			id BIGSERIAL PRIMARY KEY,
			identity BIGINT NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(50) NOT NULL DEFAULT 'Other',
			bio TEXT NOT NULL DEFAULT '',
			logo_ref TEXT,
			plan VARCHAR(50) NOT NULL,
			relay_mode VARCHAR(20) NOT NULL DEFAULT 'shared',
			relay_token_enc TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			trial_ends TIMESTAMPTZ,
			subscription_expires TIMESTAMPTZ,
			trial_reminder_at TIMESTAMPTZ,
			trial_expired_at TIMESTAMPTZ,
			last_payment_ref VARCHAR(255) NOT NULL DEFAULT ''
		)`,

		// End users table: senders seen by the relay, created lazily.
		`CREATE TABLE IF NOT EXISTS end_users (
			id BIGSERIAL PRIMARY KEY,
			identity BIGINT NOT NULL UNIQUE,
			first_name VARCHAR(255) NOT NULL DEFAULT '',
			last_name VARCHAR(255) NOT NULL DEFAULT '',
			handle VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Pending premium selections awaiting payment confirmation.
		`CREATE TABLE IF NOT EXISTS pending_payments (
			identity BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(50) NOT NULL,
			bio TEXT NOT NULL DEFAULT '',
			logo_ref TEXT,
			plan VARCHAR(50) NOT NULL,
			ref VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_owners_identity ON owners(identity)`,
		`CREATE INDEX IF NOT EXISTS idx_owners_trial_ends ON owners(trial_ends) WHERE trial_ends IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_end_users_identity ON end_users(identity)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_payments_created_at ON pending_payments(created_at)`,
	}

	for _, query := range queries {
		if _, err := PostgresDB.Exec(query); err != nil {
			return err
		}
	}

	log.Println("✅ PostgreSQL tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
