package db

// SchemaVersion is the current schema version. Bump when adding a migration.
const SchemaVersion = 2

const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
    table_name  TEXT NOT NULL,
    record_id   TEXT NOT NULL,
    data        JSON NOT NULL,
    sync_status TEXT NOT NULL DEFAULT 'pending',
    sync_version INTEGER NOT NULL DEFAULT 0,
    checksum    TEXT NOT NULL,
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL,
    PRIMARY KEY (table_name, record_id)
);
CREATE INDEX IF NOT EXISTS idx_records_status ON records(sync_status);
CREATE INDEX IF NOT EXISTS idx_records_table ON records(table_name);

CREATE TABLE IF NOT EXISTS change_queue (
    id            TEXT PRIMARY KEY,
    table_name    TEXT NOT NULL,
    record_id     TEXT NOT NULL,
    operation     TEXT NOT NULL,
    data          JSON,
    original_data JSON,
    timestamp     DATETIME NOT NULL,
    retry_count   INTEGER NOT NULL DEFAULT 0,
    max_retries   INTEGER NOT NULL DEFAULT 3,
    sync_status   TEXT NOT NULL DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS idx_queue_status ON change_queue(sync_status, timestamp);

CREATE TABLE IF NOT EXISTS sync_state (
    device_id             TEXT NOT NULL,
    last_sync_timestamp   TEXT NOT NULL DEFAULT '',
    last_successful_sync  DATETIME,
    last_error            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sync_conflicts (
    conflict_id         TEXT PRIMARY KEY,
    table_name          TEXT NOT NULL,
    record_id           TEXT NOT NULL,
    local_data          JSON,
    remote_data         JSON,
    local_version       INTEGER NOT NULL DEFAULT 0,
    remote_version      INTEGER NOT NULL DEFAULT 0,
    severity            TEXT NOT NULL DEFAULT 'medium',
    resolved            INTEGER NOT NULL DEFAULT 0,
    resolution_strategy TEXT NOT NULL DEFAULT '',
    detected_at         DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conflicts_open ON sync_conflicts(resolved, detected_at);

CREATE TABLE IF NOT EXISTS storage_meta (
    key   TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);
`
