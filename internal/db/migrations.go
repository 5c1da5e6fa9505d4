package db

import (
	"fmt"

	"gorm.io/gorm"
)

// members, projects and project_applications belong to the marketplace core schema.
var migrationStatements = []string{
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'contract_status') THEN
			CREATE TYPE contract_status AS ENUM (
				'PENDING', 'DECLINED', 'WITHDRAWN', 'ARTIST_SIGNED', 'PAYMENT_PENDING',
				'PAYMENT_COMPLETED', 'CANCELLATION_REQUESTED', 'COMPLETED', 'CANCELED'
			);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'order_status') THEN
			CREATE TYPE order_status AS ENUM ('PENDING', 'PAID', 'SETTLED', 'CANCELED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'onchain_status') THEN
			CREATE TYPE onchain_status AS ENUM ('PENDING', 'SUCCEEDED', 'FAILED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS fee_policies (
		id BIGSERIAL PRIMARY KEY,
		rate NUMERIC(6,4) NOT NULL CHECK (rate >= 0 AND rate < 1),
		effective_from TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id BIGSERIAL PRIMARY KEY,
		application_id BIGINT NOT NULL REFERENCES project_applications(id),
		project_id BIGINT NOT NULL REFERENCES projects(id),
		requester_id BIGINT NOT NULL REFERENCES members(id),
		counterparty_id BIGINT NOT NULL REFERENCES members(id),
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_at TIMESTAMPTZ NOT NULL,
		end_at TIMESTAMPTZ NOT NULL,
		total_amount BIGINT NOT NULL CHECK (total_amount > 0),
		fee_rate NUMERIC(6,4) NOT NULL,
		counterparty_signature TEXT,
		requester_signature TEXT,
		nft_image_url TEXT,
		status contract_status NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_requester_id ON contracts (requester_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_counterparty_id ON contracts (counterparty_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_application_id ON contracts (application_id);`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		contract_id BIGINT NOT NULL REFERENCES contracts(id),
		amount BIGINT NOT NULL,
		fee BIGINT NOT NULL,
		payout BIGINT NOT NULL,
		status order_status NOT NULL DEFAULT 'PENDING',
		payment_key TEXT,
		paid_at TIMESTAMPTZ,
		settled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_orders_contract_id ON orders (contract_id);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_orders_contract_pending ON orders (contract_id) WHERE status = 'PENDING';`,
	`CREATE TABLE IF NOT EXISTS onchain_records (
		id BIGSERIAL PRIMARY KEY,
		contract_id BIGINT NOT NULL REFERENCES contracts(id),
		action VARCHAR(32) NOT NULL,
		status onchain_status NOT NULL DEFAULT 'PENDING',
		tx_hash TEXT,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_onchain_records_contract_action ON onchain_records (contract_id, action, id DESC);`,
	`CREATE TABLE IF NOT EXISTS contract_nfts (
		contract_id BIGINT PRIMARY KEY REFERENCES contracts(id),
		token_id TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		image_url TEXT,
		issued_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		contract_id BIGINT NOT NULL,
		actor_id BIGINT NOT NULL,
		action VARCHAR(32) NOT NULL,
		from_status VARCHAR(32) NOT NULL,
		to_status VARCHAR(32) NOT NULL,
		reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_contract_id ON audit_logs (contract_id, id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
