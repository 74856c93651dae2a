package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrações embutidas, aplicadas em ordem no boot da API.
// Simples de propósito: o schema do core cabe aqui sem ferramenta externa.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS slots (
		id UUID PRIMARY KEY,
		trainer_id UUID NOT NULL,
		class_id UUID NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		capacity INT NOT NULL DEFAULT 1 CHECK (capacity > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (end_time > start_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_slots_trainer_time ON slots (trainer_id, start_time, end_time)`,
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	// Garantia no banco de que a agenda de um trainer nunca sobrepõe,
	// mesmo que dois creates concorrentes furem a checagem da aplicação.
	`DO $$
	BEGIN
		ALTER TABLE slots ADD CONSTRAINT slots_trainer_no_overlap
			EXCLUDE USING gist (trainer_id WITH =, tstzrange(start_time, end_time) WITH &&);
	EXCEPTION WHEN duplicate_object OR duplicate_table THEN
		NULL;
	END $$`,
	`CREATE TABLE IF NOT EXISTS reservation_holds (
		id UUID PRIMARY KEY,
		slot_id UUID NOT NULL REFERENCES slots (id),
		member_id UUID NOT NULL,
		status TEXT NOT NULL DEFAULT 'active'
			CHECK (status IN ('active', 'confirmed', 'released', 'expired')),
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_holds_slot_status ON reservation_holds (slot_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_holds_expiry ON reservation_holds (expires_at) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS payment_intents (
		id UUID PRIMARY KEY,
		hold_id UUID NOT NULL UNIQUE REFERENCES reservation_holds (id),
		provider_ref TEXT NOT NULL DEFAULT '',
		amount BIGINT NOT NULL CHECK (amount > 0),
		currency TEXT NOT NULL,
		package_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'created'
			CHECK (status IN ('created', 'succeeded', 'failed', 'expired')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_intents_provider_ref ON payment_intents (provider_ref)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		slot_id UUID NOT NULL REFERENCES slots (id),
		hold_id UUID NOT NULL UNIQUE REFERENCES reservation_holds (id),
		member_id UUID NOT NULL,
		trainer_id UUID NOT NULL,
		package_type TEXT NOT NULL,
		amount_paid BIGINT NOT NULL,
		payment_ref TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'confirmed'
			CHECK (status IN ('confirmed', 'cancelled')),
		confirmed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_member ON bookings (member_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_trainer ON bookings (trainer_id)`,
	`CREATE TABLE IF NOT EXISTS booking_status_events (
		id UUID PRIMARY KEY,
		booking_id UUID NOT NULL REFERENCES bookings (id),
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate aplica o schema. Idempotente (IF NOT EXISTS em tudo).
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
