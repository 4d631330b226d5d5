package database

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration represents one schema migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator handles database migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// migrations is the full ordered schema. Compiled in so the binary needs no
// migrations directory alongside it.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_purchase_orders",
		SQL: `
			CREATE TABLE IF NOT EXISTS purchase_orders (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				origin TEXT NOT NULL,
				project_ref TEXT NOT NULL DEFAULT '',
				supplier_ref TEXT NOT NULL,
				requester_ref TEXT NOT NULL DEFAULT '',
				total TEXT NOT NULL DEFAULT '0',
				status TEXT NOT NULL,
				approver_ref TEXT,
				finance_decision TEXT,
				finance_note TEXT,
				decided_at DATETIME,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_purchase_orders_status ON purchase_orders(status);

			CREATE TABLE IF NOT EXISTS purchase_order_items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				order_id INTEGER NOT NULL REFERENCES purchase_orders(id),
				material_ref TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				quantity INTEGER NOT NULL,
				unit_price TEXT NOT NULL,
				warranty_period TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_po_items_order ON purchase_order_items(order_id);
		`,
	},
	{
		Version: 2,
		Name:    "create_warranties",
		SQL: `
			CREATE TABLE IF NOT EXISTS warranties (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project_ref TEXT NOT NULL DEFAULT '',
				client_ref TEXT NOT NULL,
				item_ref TEXT NOT NULL,
				order_id INTEGER NOT NULL DEFAULT 0,
				start_date DATETIME NOT NULL,
				end_date DATETIME NOT NULL,
				status TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_warranties_order ON warranties(order_id);

			CREATE TABLE IF NOT EXISTS warranty_claims (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				warranty_id INTEGER NOT NULL REFERENCES warranties(id),
				client_ref TEXT NOT NULL,
				issue TEXT NOT NULL,
				proof_ref TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				reviewer_ref TEXT,
				shipped_replacement INTEGER,
				shipped_at DATETIME,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_claims_warranty ON warranty_claims(warranty_id);
		`,
	},
	{
		Version: 3,
		Name:    "create_payment_receipts",
		SQL: `
			CREATE TABLE IF NOT EXISTS payment_receipts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				linked_request_id INTEGER NOT NULL DEFAULT 0,
				client_ref TEXT NOT NULL,
				amount TEXT NOT NULL,
				due_date DATETIME NOT NULL,
				upload_token TEXT NOT NULL,
				token_expires DATETIME NOT NULL,
				upload_attempts INTEGER NOT NULL DEFAULT 0,
				is_token_used INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				file_path TEXT,
				file_original_name TEXT,
				file_size INTEGER,
				file_mime TEXT,
				uploader_ip TEXT,
				uploader_agent TEXT,
				verifier_ref TEXT,
				verified_at DATETIME,
				rejection_reason TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_receipts_token ON payment_receipts(upload_token);
			CREATE INDEX IF NOT EXISTS idx_receipts_status ON payment_receipts(status, token_expires);

			CREATE TABLE IF NOT EXISTS inspection_requests (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project_ref TEXT NOT NULL DEFAULT '',
				client_ref TEXT NOT NULL,
				status TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version: 4,
		Name:    "create_transition_history",
		SQL: `
			CREATE TABLE IF NOT EXISTS transition_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				entity_type TEXT NOT NULL,
				entity_id INTEGER NOT NULL,
				action TEXT NOT NULL,
				actor_role TEXT NOT NULL,
				actor_id TEXT NOT NULL DEFAULT '',
				from_status TEXT NOT NULL DEFAULT '',
				to_status TEXT NOT NULL,
				note TEXT NOT NULL DEFAULT '',
				timestamp DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_history_entity ON transition_history(entity_type, entity_id);
		`,
	},
	{
		Version: 5,
		Name:    "create_notifications",
		SQL: `
			CREATE TABLE IF NOT EXISTS notifications (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				recipient TEXT NOT NULL,
				template TEXT NOT NULL,
				payload TEXT NOT NULL DEFAULT '{}',
				sent_at DATETIME,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient);
		`,
	},
}

// RunMigrations applies all pending migrations
func (m *Migrator) RunMigrations() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending := make([]Migration, 0, len(migrations))
	for _, migration := range migrations {
		if !applied[migration.Version] {
			pending = append(pending, migration)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, migration := range pending {
		m.logger.Info("Applying migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))

		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	m.logger.Info("Database migrations completed",
		zap.Int("applied", len(pending)))
	return nil
}

// createMigrationsTable creates the migrations tracking table
func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

// getAppliedMigrations returns the set of applied migration versions
func (m *Migrator) getAppliedMigrations() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// applyMigration runs one migration and records it in a single transaction
func (m *Migrator) applyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(migration.SQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		migration.Version, migration.Name,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
