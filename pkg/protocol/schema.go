package protocol

// SchemaDDL defines the SQLite schema for the otto runtime state database.
// Tables: events. Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Runtime event log: everything the watcher observed and the engine did
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    event_id TEXT,
    kind TEXT NOT NULL,
    source TEXT NOT NULL,
    caller TEXT,
    priority REAL NOT NULL DEFAULT 0,
    payload TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS events_kind_idx ON events(kind, created_at);
`

// MemorySchemaDDL defines the SQLite schema for the memory database.
// Tables: memories, memories_fts (FTS5) with sync triggers.
const MemorySchemaDDL = `
-- Long-lived assistant memory (call summaries, transcripts, action results)
CREATE TABLE IF NOT EXISTS memories (
    id INTEGER PRIMARY KEY,
    content TEXT NOT NULL,
    type TEXT NOT NULL,
    caller TEXT,
    importance REAL NOT NULL DEFAULT 0.5,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- FTS5 full-text index over memories for BM25-ranked search
CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
    content,
    caller,
    content=memories,
    content_rowid=id
);

-- Triggers to keep FTS index in sync with memories table
CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
    INSERT INTO memories_fts(rowid, content, caller) VALUES (new.id, new.content, new.caller);
END;

CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
    INSERT INTO memories_fts(memories_fts, rowid, content, caller) VALUES ('delete', old.id, old.content, old.caller);
END;

CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
    INSERT INTO memories_fts(memories_fts, rowid, content, caller) VALUES ('delete', old.id, old.content, old.caller);
    INSERT INTO memories_fts(rowid, content, caller) VALUES (new.id, new.content, new.caller);
END;
`
