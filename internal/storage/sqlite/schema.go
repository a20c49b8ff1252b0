package sqlite

// Schema contains the DDL that bootstraps a fresh database. It is applied on
// every open via CREATE TABLE/INDEX IF NOT EXISTS, so it is safe to run
// against an already-initialized file. An existing table is left as it is:
// columns added to a table here are not added to a file created earlier.
const Schema = `
-- Memories: the atomic unit of stored knowledge. is_active is the soft-delete
-- flag (true = live, false = trashed; restore flips it back). parent_id and
-- superseded_by are weak references, cleared rather than followed when their
-- target disappears.
CREATE TABLE IF NOT EXISTS memories (
    id               TEXT PRIMARY KEY,
    content          TEXT NOT NULL,
    content_type     TEXT NOT NULL DEFAULT 'text',
    source           TEXT NOT NULL DEFAULT 'manual',
    source_uri       TEXT,

    embedding        BLOB,

    importance       REAL NOT NULL DEFAULT 0.5,

    access_count     INTEGER NOT NULL DEFAULT 0,
    useful_count     INTEGER NOT NULL DEFAULT 0,
    last_accessed_at TIMESTAMP,

    parent_id        TEXT,
    superseded_by    TEXT,

    is_active        INTEGER NOT NULL DEFAULT 1,
    is_metadata      INTEGER NOT NULL DEFAULT 0,
    is_indexed       INTEGER NOT NULL DEFAULT 1,

    chunk_index      INTEGER,

    metadata         TEXT,
    keywords         TEXT,
    tags             TEXT,

    content_hash     TEXT NOT NULL,

    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    FOREIGN KEY (parent_id) REFERENCES memories(id) ON DELETE SET NULL,
    FOREIGN KEY (superseded_by) REFERENCES memories(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_is_active ON memories(is_active);
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
CREATE INDEX IF NOT EXISTS idx_memories_updated_at ON memories(updated_at);
CREATE INDEX IF NOT EXISTS idx_memories_content_hash ON memories(content_hash);
CREATE INDEX IF NOT EXISTS idx_memories_parent_id ON memories(parent_id);
CREATE INDEX IF NOT EXISTS idx_memories_superseded_by ON memories(superseded_by);
CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance DESC);
CREATE INDEX IF NOT EXISTS idx_memories_source ON memories(source);
CREATE INDEX IF NOT EXISTS idx_memories_is_metadata ON memories(is_metadata);

-- FTS5 virtual table kept in sync with memories via triggers below. Only the
-- lexical content is indexed; filtering (is_active, content_type, ...)
-- happens in the join against the base table.
CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
    content,
    keywords,
    content='memories',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memories_fts_insert AFTER INSERT ON memories BEGIN
    INSERT INTO memories_fts(rowid, content, keywords) VALUES (new.rowid, new.content, new.keywords);
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_delete AFTER DELETE ON memories BEGIN
    INSERT INTO memories_fts(memories_fts, rowid, content, keywords) VALUES ('delete', old.rowid, old.content, old.keywords);
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_update AFTER UPDATE ON memories BEGIN
    INSERT INTO memories_fts(memories_fts, rowid, content, keywords) VALUES ('delete', old.rowid, old.content, old.keywords);
    INSERT INTO memories_fts(rowid, content, keywords) VALUES (new.rowid, new.content, new.keywords);
END;

-- Entities: named things extracted from memories. Lookup by name is
-- case-insensitive; a unique index over the lowercased name and the type
-- keeps one entity per name and type.
CREATE TABLE IF NOT EXISTS entities (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    type       TEXT NOT NULL,
    aliases    TEXT,
    metadata   TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_name_type ON entities(LOWER(name), type);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);

-- Memory-entity join: which entities appear in which memories, with a
-- per-pair relevance score.
CREATE TABLE IF NOT EXISTS memory_entities (
    memory_id  TEXT NOT NULL,
    entity_id  TEXT NOT NULL,
    relevance  REAL NOT NULL DEFAULT 1.0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (memory_id, entity_id),
    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE,
    FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_memory_entities_entity ON memory_entities(entity_id);
CREATE INDEX IF NOT EXISTS idx_memory_entities_memory ON memory_entities(memory_id);

-- Entity relationships: labeled (source, target, label) triples between
-- entities, optionally attributed to the memory they were extracted from.
CREATE TABLE IF NOT EXISTS entity_relationships (
    id           TEXT PRIMARY KEY,
    source_id    TEXT NOT NULL,
    target_id    TEXT NOT NULL,
    relationship TEXT NOT NULL,
    confidence   REAL NOT NULL DEFAULT 1.0,
    memory_id    TEXT,
    context      TEXT,
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(source_id, target_id, relationship),
    FOREIGN KEY (source_id) REFERENCES entities(id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES entities(id) ON DELETE CASCADE,
    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_entity_relationships_source ON entity_relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_entity_relationships_target ON entity_relationships(target_id);

-- Memory links: directed memory-to-memory edges (related, elaborates,
-- contradicts, supersedes, supports, derived_from), queried symmetrically.
CREATE TABLE IF NOT EXISTS memory_links (
    id         TEXT PRIMARY KEY,
    source_id  TEXT NOT NULL,
    target_id  TEXT NOT NULL,
    link_type  TEXT NOT NULL,
    strength   REAL NOT NULL DEFAULT 1.0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(source_id, target_id, link_type),
    FOREIGN KEY (source_id) REFERENCES memories(id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_memory_links_source ON memory_links(source_id);
CREATE INDEX IF NOT EXISTS idx_memory_links_target ON memory_links(target_id);
CREATE INDEX IF NOT EXISTS idx_memory_links_type ON memory_links(link_type);

-- Goals: longer-running objectives. Progress memories reference a goal via
-- metadata.goal_id (a weak reference, not a foreign key).
CREATE TABLE IF NOT EXISTS goals (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    description  TEXT,
    status       TEXT NOT NULL DEFAULT 'active',
    priority     TEXT NOT NULL DEFAULT 'medium',
    deadline     TIMESTAMP,
    milestones   TEXT,
    embedding    BLOB,
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_goals_status ON goals(status);

-- Consolidations: immutable record of a clustering merge. source_ids is a
-- JSON array of the memory ids folded into summary_id.
CREATE TABLE IF NOT EXISTS consolidations (
    id              TEXT PRIMARY KEY,
    summary_id      TEXT NOT NULL,
    source_ids      TEXT NOT NULL,
    strategy        TEXT NOT NULL,
    memories_merged INTEGER NOT NULL,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (summary_id) REFERENCES memories(id) ON DELETE CASCADE
);

-- Contradictions: detected conflicts between two memories. The smaller id of
-- the pair is always stored as memory_a_id so (a,b) and (b,a) collide.
CREATE TABLE IF NOT EXISTS contradictions (
    id           TEXT PRIMARY KEY,
    memory_a_id  TEXT NOT NULL,
    memory_b_id  TEXT NOT NULL,
    description  TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'pending',
    resolution   TEXT,
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(memory_a_id, memory_b_id),
    FOREIGN KEY (memory_a_id) REFERENCES memories(id) ON DELETE CASCADE,
    FOREIGN KEY (memory_b_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_contradictions_status ON contradictions(status);

-- Access log: append-only record of retrievals, used by frequency/usefulness
-- scoring and co-retrieval link building.
CREATE TABLE IF NOT EXISTS access_log (
    id         TEXT PRIMARY KEY,
    memory_id  TEXT NOT NULL,
    query      TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_access_log_memory ON access_log(memory_id);
CREATE INDEX IF NOT EXISTS idx_access_log_created_at ON access_log(created_at);

-- Co-retrievals: memories that appeared together in a single ranked result
-- set, keyed by a hash of the originating query. Feeds graph densify.
CREATE TABLE IF NOT EXISTS co_retrievals (
    id         TEXT PRIMARY KEY,
    query_hash TEXT NOT NULL,
    memory_ids TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_co_retrievals_query_hash ON co_retrievals(query_hash);

-- Retrieval regression: golden query baselines and per-run drift records.
CREATE TABLE IF NOT EXISTS regression_baselines (
    query_id    TEXT PRIMARY KEY,
    ids         TEXT NOT NULL,
    initialized INTEGER NOT NULL DEFAULT 0,
    updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS regression_runs (
    id              TEXT PRIMARY KEY,
    run_id          TEXT NOT NULL,
    query_id        TEXT NOT NULL,
    current_ids     TEXT NOT NULL,
    overlap         REAL NOT NULL DEFAULT 0,
    exact_order     INTEGER NOT NULL DEFAULT 0,
    avg_rank_shift  REAL NOT NULL DEFAULT 0,
    alert           INTEGER NOT NULL DEFAULT 0,
    initialized     INTEGER NOT NULL DEFAULT 0,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_regression_runs_run ON regression_runs(run_id);
CREATE INDEX IF NOT EXISTS idx_regression_runs_query ON regression_runs(query_id);

-- Settings: flat global key-value store, insert-if-absent bootstrapped from
-- pkg/types.SettingDefaults.
CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Backup runs: a table for a history of rotated backups. Nothing in this
-- module writes to it; backup pruning works from the files in the backup
-- directory.
CREATE TABLE IF NOT EXISTS backup_runs (
    id         TEXT PRIMARY KEY,
    path       TEXT NOT NULL,
    tier       TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    verified   INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_backup_runs_tier ON backup_runs(tier);
`
