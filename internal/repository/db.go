package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// The SQL in this package sticks to the dialect subset shared by Postgres and
// SQLite ($n placeholders, RETURNING, ON CONFLICT upserts), so the same
// repositories run on either driver.

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	username TEXT NOT NULL DEFAULT '',
	profile_picture TEXT NOT NULL DEFAULT '',
	occupation TEXT NOT NULL DEFAULT '',
	automation_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	automation_frequency TEXT NOT NULL DEFAULT 'daily',
	automation_auto_publish BOOLEAN NOT NULL DEFAULT FALSE,
	last_auto_run_at TIMESTAMP,
	openai_key_encrypted TEXT NOT NULL DEFAULT '',
	openai_key_last4 TEXT NOT NULL DEFAULT '',
	openai_key_set_at TIMESTAMP,
	linkedin_connected BOOLEAN NOT NULL DEFAULT FALSE,
	linkedin_checked_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	owner_id TEXT NOT NULL,
	topic TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	scheduled_for TIMESTAMP,
	scheduled_visibility TEXT NOT NULL DEFAULT 'PUBLIC',
	publish_attempts INTEGER NOT NULL DEFAULT 0,
	last_publish_error TEXT,
	platform_post_id TEXT,
	image_url TEXT,
	image_storage_path TEXT,
	image_base64 TEXT,
	image_mime_type TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	published_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_posts_due ON posts (status, scheduled_for);
CREATE INDEX IF NOT EXISTS idx_posts_owner ON posts (owner_id);

CREATE TABLE IF NOT EXISTS automation_logs (
	id INTEGER PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
	user_id TEXT NOT NULL,
	run_at TIMESTAMP NOT NULL,
	outcome TEXT NOT NULL,
	items_created INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_automation_logs_user ON automation_logs (user_id, run_at);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	username TEXT NOT NULL DEFAULT '',
	profile_picture TEXT NOT NULL DEFAULT '',
	occupation TEXT NOT NULL DEFAULT '',
	automation_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	automation_frequency TEXT NOT NULL DEFAULT 'daily',
	automation_auto_publish BOOLEAN NOT NULL DEFAULT FALSE,
	last_auto_run_at TIMESTAMP,
	openai_key_encrypted TEXT NOT NULL DEFAULT '',
	openai_key_last4 TEXT NOT NULL DEFAULT '',
	openai_key_set_at TIMESTAMP,
	linkedin_connected BOOLEAN NOT NULL DEFAULT FALSE,
	linkedin_checked_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	topic TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	scheduled_for TIMESTAMP,
	scheduled_visibility TEXT NOT NULL DEFAULT 'PUBLIC',
	publish_attempts INTEGER NOT NULL DEFAULT 0,
	last_publish_error TEXT,
	platform_post_id TEXT,
	image_url TEXT,
	image_storage_path TEXT,
	image_base64 TEXT,
	image_mime_type TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	published_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_posts_due ON posts (status, scheduled_for);
CREATE INDEX IF NOT EXISTS idx_posts_owner ON posts (owner_id);

CREATE TABLE IF NOT EXISTS automation_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	run_at TIMESTAMP NOT NULL,
	outcome TEXT NOT NULL,
	items_created INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_automation_logs_user ON automation_logs (user_id, run_at);
`

// OpenPostgres connects, pings and applies the schema.
func OpenPostgres(uri string) (*sql.DB, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (or creates) the database file and applies the schema.
// Connections are capped at one because the driver serializes writes anyway.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
