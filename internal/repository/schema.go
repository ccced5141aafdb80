package repository

import (
	"context"
	"fmt"

	"wacontacts/internal/infrastructure"
)

// contactViewColumns is the projection shared by the contact views and
// the identifier lookup, scanned by scanContactView.
const contactViewColumns = `
	c.id AS contact_id, c.wid, c.name, c.phone, c.phoneBR, c.there_is, c.link,
	c.created_at, c.updated_at,
	cu.user_id, cu.lid, cu.is_business, cu.is_contact_sync_completed, cu.is_enterprise,
	cu.is_group, cu.name AS user_name, cu.pushname, cu.short_name, cu.sync_to_addressbook,
	cu.type, cu.verified_name, cu.wa_labels, cu.assigned_at, cu.deleted_at,
	m.id AS message_row_id, m.message_id, m.chat_id, m.body, m.type AS message_type,
	m.timestamp_ms, m.ack, m.is_forwarded, m.unread_count, m.has_unread, m.exists_flag`

const contactViewFrom = `
	FROM contacts c
	JOIN contacts_users cu ON cu.contact_id = c.id
	LEFT JOIN contact_messages m ON m.contact_id = cu.contact_id AND m.user_id = cu.user_id`

const statsSelect = `
	SELECT cu.user_id,
		SUM(CASE WHEN cu.deleted_at IS NULL THEN 1 ELSE 0 END) AS contact_count,
		SUM(CASE WHEN cu.deleted_at IS NOT NULL THEN 1 ELSE 0 END) AS deleted_count,
		SUM(CASE WHEN cu.deleted_at IS NULL AND m.has_unread THEN 1 ELSE 0 END) AS unread_chats,
		COALESCE(SUM(CASE WHEN cu.deleted_at IS NULL THEN m.unread_count ELSE 0 END), 0) AS unread_messages
	FROM contacts_users cu
	LEFT JOIN contact_messages m ON m.contact_id = cu.contact_id AND m.user_id = cu.user_id
	GROUP BY cu.user_id`

type columnTypes struct {
	id        string
	fk        string
	boolTrue  string
	boolFalse string
	ts        string
	bigint    string
}

var dialectTypes = map[string]columnTypes{
	infrastructure.DialectSQLite: {
		id:        "INTEGER PRIMARY KEY AUTOINCREMENT",
		fk:        "INTEGER",
		boolTrue:  "1",
		boolFalse: "0",
		ts:        "TIMESTAMP",
		bigint:    "INTEGER",
	},
	infrastructure.DialectPostgres: {
		id:        "BIGSERIAL PRIMARY KEY",
		fk:        "BIGINT",
		boolTrue:  "TRUE",
		boolFalse: "FALSE",
		ts:        "TIMESTAMPTZ",
		bigint:    "BIGINT",
	},
}

// SchemaStatements returns the DDL for dialect in dependency order.
func SchemaStatements(dialect string) ([]infrastructure.Statement, error) {
	t, ok := dialectTypes[dialect]
	if !ok {
		return nil, fmt.Errorf("schema: unknown dialect %q", dialect)
	}

	tables := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %[1]s,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			is_active BOOLEAN NOT NULL DEFAULT %[2]s,
			created_at %[3]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at %[3]s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, t.id, t.boolTrue, t.ts),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS profiles (
			id %[1]s,
			user_id %[2]s NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			token TEXT UNIQUE,
			name TEXT,
			phone TEXT,
			document TEXT,
			wa_phones TEXT NOT NULL DEFAULT '[]',
			created_at %[3]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at %[3]s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, t.id, t.fk, t.ts),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS contacts (
			id %[1]s,
			wid TEXT UNIQUE,
			name TEXT,
			phone TEXT,
			phoneBR TEXT,
			there_is BOOLEAN NOT NULL DEFAULT %[2]s,
			link TEXT NOT NULL DEFAULT '[]',
			created_at %[3]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at %[3]s NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, t.id, t.boolFalse, t.ts),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS contacts_users (
			contact_id %[1]s NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
			user_id %[1]s NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			lid TEXT,
			is_business BOOLEAN,
			is_contact_sync_completed BOOLEAN,
			is_enterprise BOOLEAN,
			is_group BOOLEAN NOT NULL DEFAULT %[2]s,
			name TEXT,
			pushname TEXT,
			short_name TEXT,
			sync_to_addressbook BOOLEAN,
			type TEXT,
			verified_name TEXT,
			wa_labels TEXT NOT NULL DEFAULT '[]',
			assigned_at %[3]s,
			created_at %[3]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at %[3]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at %[3]s,
			PRIMARY KEY (contact_id, user_id)
		)`, t.fk, t.boolFalse, t.ts),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS contact_messages (
			id %[1]s,
			contact_id %[2]s NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
			user_id %[2]s NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			message_id TEXT,
			chat_id TEXT,
			body TEXT,
			type TEXT,
			timestamp_ms %[3]s NOT NULL DEFAULT 0,
			ack INTEGER NOT NULL DEFAULT 0,
			is_forwarded BOOLEAN NOT NULL DEFAULT %[4]s,
			unread_count INTEGER NOT NULL DEFAULT 0,
			has_unread BOOLEAN NOT NULL DEFAULT %[4]s,
			exists_flag BOOLEAN NOT NULL DEFAULT %[5]s,
			created_at %[6]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at %[6]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (contact_id, user_id)
		)`, t.id, t.fk, t.bigint, t.boolFalse, t.boolTrue, t.ts),

		`CREATE INDEX IF NOT EXISTS idx_contacts_users_user_lid ON contacts_users (user_id, lid)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_phone ON contacts (phone)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_phone ON profiles (phone)`,
	}

	createView := "CREATE VIEW IF NOT EXISTS"
	if dialect == infrastructure.DialectPostgres {
		createView = "CREATE OR REPLACE VIEW"
	}
	views := []string{
		fmt.Sprintf("%s view_contacts_active AS SELECT %s %s WHERE cu.deleted_at IS NULL",
			createView, contactViewColumns, contactViewFrom),
		fmt.Sprintf("%s view_contacts_deleted AS SELECT %s %s WHERE cu.deleted_at IS NOT NULL",
			createView, contactViewColumns, contactViewFrom),
		fmt.Sprintf("%s view_user_contact_stats AS %s", createView, statsSelect),
	}

	stmts := make([]infrastructure.Statement, 0, len(tables)+len(views))
	for _, sql := range append(tables, views...) {
		stmts = append(stmts, infrastructure.NewStatement(sql))
	}
	return stmts, nil
}

// Migrate creates the schema. It is idempotent and runs as one batch.
func Migrate(ctx context.Context, db infrastructure.Database) error {
	stmts, err := SchemaStatements(db.Dialect())
	if err != nil {
		return err
	}
	if _, err := db.Batch(ctx, stmts, infrastructure.BatchWrite); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
