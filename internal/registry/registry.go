// Package registry stores the JID → group mapping that the IPC queue
// authorizes outbound messages against.
package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MainGroupFolder is the privileged group namespace. Messages originating
// from it may address any JID, registered or not.
const MainGroupFolder = "main"

// Group is one addressable conversation context. Folder is the queue
// namespace key and must be unique and filesystem-safe.
type Group struct {
	Name    string    `json:"name"`
	Folder  string    `json:"folder"`
	Trigger string    `json:"trigger"`
	AddedAt time.Time `json:"added_at"`
}

// Store persists registered groups in sqlite and can mirror them to a JSON
// snapshot for external producers.
type Store struct {
	db           *sql.DB
	snapshotPath string
}

const schema = `
CREATE TABLE IF NOT EXISTS registered_groups (
	jid      TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	folder   TEXT NOT NULL UNIQUE,
	trigger  TEXT NOT NULL DEFAULT '',
	added_at TIMESTAMP NOT NULL
);
`

// Open opens (creating if necessary) the registry database at dbPath.
// snapshotPath is where WriteSnapshot mirrors the registry; it may be empty
// to disable snapshots.
func Open(dbPath, snapshotPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init registry schema: %w", err)
	}
	return &Store{db: db, snapshotPath: snapshotPath}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Register inserts or updates the group registered for jid. A zero AddedAt
// is stamped with the current time.
func (s *Store) Register(jid string, g Group) error {
	if jid == "" || g.Folder == "" {
		return fmt.Errorf("register group: jid and folder are required")
	}
	if g.AddedAt.IsZero() {
		g.AddedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO registered_groups (jid, name, folder, trigger, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name = excluded.name,
			folder = excluded.folder,
			trigger = excluded.trigger`,
		jid, g.Name, g.Folder, g.Trigger, g.AddedAt)
	if err != nil {
		return fmt.Errorf("register group %s: %w", jid, err)
	}
	return nil
}

// RefreshName updates the display name of an already-registered JID without
// touching its folder, trigger or registration time. Unknown JIDs are a
// no-op; metadata sync never registers groups.
func (s *Store) RefreshName(jid, name string) error {
	if _, err := s.db.Exec(`UPDATE registered_groups SET name = ? WHERE jid = ?`, name, jid); err != nil {
		return fmt.Errorf("refresh group name %s: %w", jid, err)
	}
	return nil
}

// Groups returns the full jid → group mapping. Callers get a fresh read on
// every call; registration changes take effect on the next lookup.
func (s *Store) Groups() (map[string]Group, error) {
	rows, err := s.db.Query(`SELECT jid, name, folder, trigger, added_at FROM registered_groups`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Group)
	for rows.Next() {
		var jid string
		var g Group
		if err := rows.Scan(&jid, &g.Name, &g.Folder, &g.Trigger, &g.AddedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out[jid] = g
	}
	return out, rows.Err()
}

// All returns every registered group ordered by registration time.
func (s *Store) All() ([]Group, error) {
	rows, err := s.db.Query(`SELECT name, folder, trigger, added_at FROM registered_groups ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.Name, &g.Folder, &g.Trigger, &g.AddedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// WriteSnapshot mirrors the registry to the configured JSON snapshot file.
// The write is atomic (temp file + rename) so producers never observe a
// partial snapshot.
func (s *Store) WriteSnapshot() error {
	if s.snapshotPath == "" {
		return nil
	}
	groups, err := s.Groups()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal groups snapshot: %w", err)
	}
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write groups snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return fmt.Errorf("replace groups snapshot: %w", err)
	}
	return nil
}
