package pathdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"lockstep/internal/nav"
)

// SQLiteStore is the durable path-cache tier. It is authoritative across
// restarts; the in-memory LRU tier only ever holds a subset of it. Writes
// are per-entry upserts inside WAL, so a crash never leaves a torn entry.
type SQLiteStore struct {
	db *sql.DB
}

func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS paths (
			key TEXT PRIMARY KEY,
			start_x REAL NOT NULL,
			start_y REAL NOT NULL,
			start_z REAL NOT NULL,
			end_x REAL NOT NULL,
			end_y REAL NOT NULL,
			end_z REAL NOT NULL,
			waypoints TEXT NOT NULL,
			length REAL NOT NULL,
			checksum TEXT NOT NULL,
			generated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_paths_checksum ON paths(checksum);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(key string) (nav.CachedPath, bool, error) {
	row := s.db.QueryRow(`SELECT key, start_x, start_y, start_z, end_x, end_y, end_z,
		waypoints, length, checksum, generated_at FROM paths WHERE key = ?`, key)

	var p nav.CachedPath
	var wpJSON string
	err := row.Scan(&p.Key,
		&p.Start.X, &p.Start.Y, &p.Start.Z,
		&p.End.X, &p.End.Y, &p.End.Z,
		&wpJSON, &p.Length, &p.Checksum, &p.GeneratedAt)
	if err == sql.ErrNoRows {
		return nav.CachedPath{}, false, nil
	}
	if err != nil {
		return nav.CachedPath{}, false, err
	}

	waypoints, err := decodeWaypoints(wpJSON)
	if err != nil {
		return nav.CachedPath{}, false, fmt.Errorf("entry %s: %w", key, err)
	}
	p.Waypoints = waypoints
	return p, true, nil
}

func (s *SQLiteStore) Put(p nav.CachedPath) error {
	if p.Key == "" {
		return fmt.Errorf("empty path key")
	}
	wpJSON, err := encodeWaypoints(p.Waypoints)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO paths
		(key, start_x, start_y, start_z, end_x, end_y, end_z, waypoints, length, checksum, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			start_x=excluded.start_x, start_y=excluded.start_y, start_z=excluded.start_z,
			end_x=excluded.end_x, end_y=excluded.end_y, end_z=excluded.end_z,
			waypoints=excluded.waypoints, length=excluded.length,
			checksum=excluded.checksum, generated_at=excluded.generated_at`,
		p.Key,
		p.Start.X, p.Start.Y, p.Start.Z,
		p.End.X, p.End.Y, p.End.Z,
		wpJSON, p.Length, p.Checksum, p.GeneratedAt)
	return err
}

func (s *SQLiteStore) Checksums() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, checksum FROM paths`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, sum string
		if err := rows.Scan(&key, &sum); err != nil {
			return nil, err
		}
		out[key] = sum
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM paths`).Scan(&n)
	return n, err
}

// Waypoints are stored as a JSON [[x,y,z],...] array. Go's float64 JSON
// encoding is exact round-trip, so serialize->deserialize reproduces
// bit-identical waypoints and therefore the same checksum.
func encodeWaypoints(waypoints []nav.Point3) (string, error) {
	arr := make([][3]float64, len(waypoints))
	for i, w := range waypoints {
		arr[i] = [3]float64{w.X, w.Y, w.Z}
	}
	b, err := json.Marshal(arr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeWaypoints(s string) ([]nav.Point3, error) {
	var arr [][3]float64
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return nil, err
	}
	out := make([]nav.Point3, len(arr))
	for i, w := range arr {
		out[i] = nav.Point3{X: w[0], Y: w[1], Z: w[2]}
	}
	return out, nil
}
