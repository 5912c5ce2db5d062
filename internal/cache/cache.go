// Package cache stores compiled snippet executions in SQLite, keyed by a
// content hash of the normalized code. Grounded on the same single-writer,
// mutex-guarded pattern as a generic SQLite-backed store: one *sql.DB, one
// sync.RWMutex, explicit row scanning.
package cache

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"mfp/internal/hashing"
	"mfp/internal/model"
	"mfp/pkg/logging"

	_ "github.com/mattn/go-sqlite3"
)

const cacheSubsystem = "Cache"

// Cache is the snippet execution cache.
type Cache struct {
	db         *sql.DB
	mu         sync.RWMutex
	dbPath     string
	maxEntries int
}

// Open opens (creating if necessary) the cache database at dbPath.
func Open(dbPath string, maxEntries int) (*Cache, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	c := &Cache{db: db, dbPath: dbPath, maxEntries: maxEntries}
	if err := c.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Info(cacheSubsystem, "opened snippet cache at %s (max %d entries)", dbPath, maxEntries)
	return c, nil
}

func (c *Cache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snippets (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		description TEXT,
		servers_used TEXT,
		success INTEGER NOT NULL,
		result_summary TEXT,
		created_at INTEGER NOT NULL,
		last_used_at INTEGER NOT NULL,
		use_count INTEGER NOT NULL DEFAULT 0,
		ttl_seconds INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_snippets_last_used ON snippets(last_used_at);
	CREATE INDEX IF NOT EXISTS idx_snippets_created ON snippets(created_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Put inserts or replaces a cache entry. The id is derived from the
// normalized code, so repeated submissions of semantically identical
// snippets collide into one row.
func (c *Cache) Put(entry model.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	successInt := 0
	if entry.Success {
		successInt = 1
	}

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO snippets
		(id, code, description, servers_used, success, result_summary, created_at, last_used_at, use_count, ttl_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Code, entry.Description, joinServers(entry.ServersUsed), successInt,
		entry.ResultSummary, entry.CreatedAt, entry.LastUsedAt, entry.UseCount, entry.TTLSeconds,
	)
	if err != nil {
		return err
	}

	logging.Debug(cacheSubsystem, "stored snippet %s (servers=%v success=%v)", entry.ID, entry.ServersUsed, entry.Success)
	return c.evictIfOverCapacityLocked()
}

// Get retrieves a cache entry by id and bumps its use_count/last_used_at as
// a side effect, matching LRU semantics.
func (c *Cache) Get(id string, now int64) (*model.CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := c.db.QueryRow(`
		SELECT id, code, description, servers_used, success, result_summary, created_at, last_used_at, use_count, ttl_seconds
		FROM snippets WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if entry.TTLSeconds > 0 && now-entry.LastUsedAt > entry.TTLSeconds {
		_, _ = c.db.Exec(`DELETE FROM snippets WHERE id = ?`, id)
		return nil, false, nil
	}

	_, err = c.db.Exec(`UPDATE snippets SET use_count = use_count + 1, last_used_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return nil, false, err
	}
	entry.UseCount++
	entry.LastUsedAt = now

	return entry, true, nil
}

// SetDescription updates a cache entry's description in place, without
// touching use_count or last_used_at — annotating a snippet after the fact
// is not itself a use of it.
func (c *Cache) SetDescription(id, description string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`UPDATE snippets SET description = ? WHERE id = ?`, description, id)
	return err
}

// Search returns the most recently used entries matching an optional
// substring of description, most recent first.
func (c *Cache) Search(query string, limit int) ([]model.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var rows *sql.Rows
	var err error
	if query == "" {
		rows, err = c.db.Query(`
			SELECT id, code, description, servers_used, success, result_summary, created_at, last_used_at, use_count, ttl_seconds
			FROM snippets ORDER BY last_used_at DESC LIMIT ?`, limit)
	} else {
		rows, err = c.db.Query(`
			SELECT id, code, description, servers_used, success, result_summary, created_at, last_used_at, use_count, ttl_seconds
			FROM snippets WHERE description LIKE ? ORDER BY last_used_at DESC LIMIT ?`, "%"+query+"%", limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CacheEntry
	for rows.Next() {
		entry, err := scanEntryRow(rows)
		if err != nil {
			continue
		}
		out = append(out, *entry)
	}
	return out, nil
}

// evictIfOverCapacityLocked removes least-recently-used rows until the
// table is at or under maxEntries. Caller must hold c.mu.
func (c *Cache) evictIfOverCapacityLocked() error {
	if c.maxEntries <= 0 {
		return nil
	}
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM snippets`).Scan(&count); err != nil {
		return err
	}
	if count <= c.maxEntries {
		return nil
	}
	excess := count - c.maxEntries
	_, err := c.db.Exec(`
		DELETE FROM snippets WHERE id IN (
			SELECT id FROM snippets ORDER BY last_used_at ASC LIMIT ?
		)`, excess)
	if err == nil {
		logging.Debug(cacheSubsystem, "evicted %d least-recently-used snippet(s)", excess)
	}
	return err
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

// IDFor computes the cache key for a code snippet.
func IDFor(code string) string {
	return hashing.CodeID(code)
}

func joinServers(servers []string) string {
	out := ""
	for i, s := range servers {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func splitServers(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row *sql.Row) (*model.CacheEntry, error) {
	return scanInto(row)
}

func scanEntryRow(rows *sql.Rows) (*model.CacheEntry, error) {
	return scanInto(rows)
}

func scanInto(s scannable) (*model.CacheEntry, error) {
	var entry model.CacheEntry
	var successInt int
	var serversUsed string

	err := s.Scan(
		&entry.ID, &entry.Code, &entry.Description, &serversUsed, &successInt,
		&entry.ResultSummary, &entry.CreatedAt, &entry.LastUsedAt, &entry.UseCount, &entry.TTLSeconds,
	)
	if err != nil {
		return nil, err
	}
	entry.Success = successInt == 1
	entry.ServersUsed = splitServers(serversUsed)
	return &entry, nil
}
