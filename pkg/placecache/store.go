// Package placecache persists place lookups and search history in SQLite.
package placecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/rienbien8/spotmap/pkg/logger"
	"github.com/rienbien8/spotmap/pkg/metrics"
	"github.com/rienbien8/spotmap/pkg/spotsync"
)

const defaultMemEntries = 512

// Store is a two tier cache (in-memory LRU in front of SQLite) plus the
// search history table. Entries never expire.
type Store struct {
	db  *sql.DB
	mem *lru.Cache[string, []byte]
}

// Open opens (and creates if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// modernc sqlite does not like concurrent writers on one file.
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS geocode_cache (
			key TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			fetched_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_geocode_cache_fetched_at ON geocode_cache(fetched_at)`,
		`CREATE TABLE IF NOT EXISTS search_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			lat REAL,
			lng REAL,
			at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_history_query_id ON search_history(query, id)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("placecache schema: %w", err)
		}
	}
	mem, err := lru.New[string, []byte](defaultMemEntries)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, mem: mem}, nil
}

// Get returns the cached payload for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if b, ok := s.mem.Get(key); ok {
		metrics.GeocodeCacheTotal.WithLabelValues("memory").Inc()
		return b, true
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT json FROM geocode_cache WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.GeocodeCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		logger.Error("geocode cache read %q: %v", key, err)
		metrics.GeocodeCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.GeocodeCacheTotal.WithLabelValues("disk").Inc()
	b := []byte(raw)
	s.mem.Add(key, b)
	return b, true
}

// Put stores payload under key in both tiers.
func (s *Store) Put(ctx context.Context, key string, payload []byte) error {
	s.mem.Add(key, payload)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO geocode_cache(key, json, fetched_at) VALUES(?,?,CURRENT_TIMESTAMP)`,
		key, string(payload))
	return err
}

// RecordSearch appends a resolved query to the history.
func (s *Store) RecordSearch(ctx context.Context, query string, at spotsync.LatLng) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO search_history(query, lat, lng) VALUES(?,?,?)`, query, at.Lat, at.Lng)
	return err
}

// RecentEntry is one distinct query from the history.
type RecentEntry struct {
	Query string           `json:"query"`
	At    *spotsync.LatLng `json:"at,omitempty"`
}

// Recent returns up to limit distinct queries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RecentEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sh.query, sh.lat, sh.lng
		FROM search_history sh
		JOIN (
			SELECT query, MAX(id) AS max_id
			FROM search_history
			WHERE query <> ''
			GROUP BY query
		) latest ON latest.max_id = sh.id
		ORDER BY sh.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecentEntry
	for rows.Next() {
		var e RecentEntry
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&e.Query, &lat, &lng); err != nil {
			return nil, err
		}
		if lat.Valid && lng.Valid {
			e.At = &spotsync.LatLng{Lat: lat.Float64, Lng: lng.Float64}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
