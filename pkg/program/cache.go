package program

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrProgramNotFound indicates the requested program is not cached.
var ErrProgramNotFound = errors.New("program not found")

// Cache stores compiled programs in SQLite, keyed by template identity and
// addressed by the content hash of the wire encoding. Because the wire
// encoding is canonical, recompiling an unchanged template hits the cache.
type Cache struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenCache opens (creating if needed) a program cache at the given path.
// The special path ":memory:" yields an in-process cache.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		id   TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		data BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating table: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Hash returns the content hash of a program's wire encoding.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put serializes and stores a program, replacing any previous entry for its
// identity. Returns the content hash.
func (c *Cache) Put(p *Program) (string, error) {
	data, err := Marshal(p)
	if err != nil {
		return "", err
	}
	hash := Hash(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.Exec(
		`INSERT INTO programs (id, hash, data) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET hash = excluded.hash, data = excluded.data`,
		p.ID, hash, data,
	)
	if err != nil {
		return "", fmt.Errorf("cache: storing program %s: %w", p.ID, err)
	}
	return hash, nil
}

// Get loads the cached program for a template identity.
func (c *Cache) Get(id string) (*Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	err := c.db.QueryRow(`SELECT data FROM programs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache: program %s: %w", id, ErrProgramNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: loading program %s: %w", id, err)
	}
	return Unmarshal(data)
}

// GetIfHash loads the cached program only when its stored content hash
// matches. Used to skip recompilation when the template is unchanged.
func (c *Cache) GetIfHash(id, hash string) (*Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stored string
	var data []byte
	err := c.db.QueryRow(`SELECT hash, data FROM programs WHERE id = ?`, id).Scan(&stored, &data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && stored != hash) {
		return nil, fmt.Errorf("cache: program %s: %w", id, ErrProgramNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: loading program %s: %w", id, err)
	}
	return Unmarshal(data)
}

// Evict removes the entry for a template identity. Evicting an absent entry
// is not an error.
func (c *Cache) Evict(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.Exec(`DELETE FROM programs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("cache: evicting program %s: %w", id, err)
	}
	return nil
}

// Entry describes one cached program.
type Entry struct {
	ID   string
	Hash string
	Size int
}

// List returns the cached entries ordered by identity.
func (c *Cache) List() ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(`SELECT id, hash, length(data) FROM programs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("cache: listing programs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Hash, &e.Size); err != nil {
			return nil, fmt.Errorf("cache: scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
