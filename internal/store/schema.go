package store

import "database/sql"

// EmbeddingDim is the vector width of the vec_chunks table. It matches the
// default nomic-embed-text model.
const EmbeddingDim = 768

const ddl = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS precedents (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    doc_id            TEXT NOT NULL UNIQUE,
    prec_id           TEXT NOT NULL,
    case_no           TEXT NOT NULL DEFAULT '',
    case_name         TEXT NOT NULL DEFAULT '',
    court             TEXT NOT NULL DEFAULT '',
    decision_date     TEXT NOT NULL DEFAULT '',
    decision_date_iso TEXT NOT NULL DEFAULT '',
    source            TEXT NOT NULL DEFAULT '',
    body              TEXT NOT NULL DEFAULT '',
    hash              TEXT NOT NULL,
    summary           TEXT NOT NULL DEFAULT '',
    indexed_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS precedents_prec_id ON precedents(prec_id);
CREATE INDEX IF NOT EXISTS precedents_decision ON precedents(decision_date_iso);

CREATE TABLE IF NOT EXISTS chunks (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid         TEXT NOT NULL UNIQUE,
    precedent_id INTEGER NOT NULL REFERENCES precedents(id) ON DELETE CASCADE,
    chunk_index  INTEGER NOT NULL,
    content      TEXT NOT NULL,
    metadata     TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS chunks_precedent ON chunks(precedent_id, chunk_index);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[768]
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Init creates the schema tables if they don't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}
