package serverdb

// ServerSchemaVersion is the current server database schema version
const ServerSchemaVersion = 1

const serverSchema = `
-- Shared table catalog
CREATE TABLE IF NOT EXISTS stb_tables (
    name TEXT PRIMARY KEY,
    format TEXT NOT NULL CHECK(format IN ('stbcsv', 'csv', 'other')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Digest auth accounts
CREATE TABLE IF NOT EXISTS stb_users (
    username TEXT PRIMARY KEY,
    realm TEXT NOT NULL,
    ha1 TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Schema info table
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Migration defines a server database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the list of all server database migrations in order.
// Version 1 is the initial schema. Per-table row stores are created on
// demand by CreateTable and live outside the migration chain.
var Migrations = []Migration{}
