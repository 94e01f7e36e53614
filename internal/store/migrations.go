package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "community and generations: instance constants and per-epoch config",
		SQL: `
CREATE TABLE community (
    id             INTEGER PRIMARY KEY CHECK (id = 1),
    name           TEXT NOT NULL,
    symbol         TEXT NOT NULL,

    -- Auction constants, fixed-point decimal strings
    initial_price  TEXT NOT NULL,
    decay_constant TEXT NOT NULL,
    emission_rate  TEXT NOT NULL,

    -- Auction clock
    latest_birth   TEXT NOT NULL,

    current_epoch  INTEGER NOT NULL,
    created_at     INTEGER NOT NULL
);

CREATE TABLE generations (
    epoch          INTEGER PRIMARY KEY,
    packed         BLOB NOT NULL CHECK (length(packed) = 12),
    proof_root     BLOB NOT NULL CHECK (length(proof_root) = 32),
    created_at     INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "members: packed lifecycle record per (epoch, address)",
		SQL: `
CREATE TABLE members (
    epoch          INTEGER NOT NULL,
    address        BLOB NOT NULL CHECK (length(address) = 20),
    record         INTEGER NOT NULL,
    PRIMARY KEY (epoch, address)
);
`,
	},
	{
		Version:     3,
		Description: "balances and allowances: knowledge ledger",
		SQL: `
CREATE TABLE balances (
    address        BLOB PRIMARY KEY CHECK (length(address) = 20),
    amount         INTEGER NOT NULL CHECK (amount >= 0)
);

CREATE TABLE allowances (
    owner          BLOB NOT NULL,
    spender        BLOB NOT NULL,
    amount         INTEGER NOT NULL CHECK (amount >= 0),
    PRIMARY KEY (owner, spender)
);
`,
	},
	{
		Version:     4,
		Description: "events: committed operation log",
		SQL: `
CREATE TABLE events (
    id             INTEGER PRIMARY KEY,
    op_id          TEXT NOT NULL,
    kind           TEXT NOT NULL CHECK (kind IN ('generation_changed', 'claim', 'transfer', 'mint', 'burn', 'birth', 'death', 'approval')),
    epoch          INTEGER NOT NULL,
    from_addr      TEXT,
    to_addr        TEXT,
    amount         INTEGER NOT NULL DEFAULT 0,
    detail         TEXT,
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_events_op      ON events(op_id);
CREATE INDEX idx_events_kind    ON events(kind);
CREATE INDEX idx_events_created ON events(created_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
