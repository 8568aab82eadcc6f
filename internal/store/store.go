// Package store persists the asset inventory in SQLite and serves the
// read queries of the display surface.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"NetInventory/internal/model"
)

// DefaultRowLimit caps connection and protocol listings.
const DefaultRowLimit = 1000

// DefaultSummarySize is the number of protocols in a display summary.
const DefaultSummarySize = 5

// noProtocols is the summary sentinel for a host with no observations.
const noProtocols = "None"

// Timestamps are stored as Unix epoch seconds so MAX() in the upserts
// compares numerically.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS hosts (
    ip         TEXT PRIMARY KEY,
    mac        TEXT NOT NULL DEFAULT '',
    first_seen INTEGER NOT NULL,
    last_seen  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS protocols (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    ip           TEXT NOT NULL,
    protocol     TEXT NOT NULL,
    packet_count INTEGER NOT NULL DEFAULT 1,
    last_seen    INTEGER NOT NULL,
    UNIQUE (ip, protocol)
);

CREATE TABLE IF NOT EXISTS connections (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    source_ip    TEXT NOT NULL,
    dest_ip      TEXT NOT NULL,
    dest_port    INTEGER NOT NULL,
    protocol     TEXT NOT NULL,
    packet_count INTEGER NOT NULL DEFAULT 1,
    last_seen    INTEGER NOT NULL,
    UNIQUE (source_ip, dest_ip, dest_port, protocol)
);
`

// Each upsert is a single statement, so the counter increment and the
// last-seen refresh are never observed separately.
const upsertHostSQL = `
INSERT INTO hosts (ip, mac, first_seen, last_seen)
VALUES (?, ?, ?, ?)
ON CONFLICT(ip) DO UPDATE SET
    mac       = CASE WHEN excluded.mac <> '' THEN excluded.mac ELSE mac END,
    last_seen = MAX(last_seen, excluded.last_seen)`

const upsertProtocolSQL = `
INSERT INTO protocols (ip, protocol, packet_count, last_seen)
VALUES (?, ?, 1, ?)
ON CONFLICT(ip, protocol) DO UPDATE SET
    packet_count = packet_count + 1,
    last_seen    = MAX(last_seen, excluded.last_seen)`

const upsertConnectionSQL = `
INSERT INTO connections (source_ip, dest_ip, dest_port, protocol, packet_count, last_seen)
VALUES (?, ?, ?, ?, 1, ?)
ON CONFLICT(source_ip, dest_ip, dest_port, protocol) DO UPDATE SET
    packet_count = packet_count + 1,
    last_seen    = MAX(last_seen, excluded.last_seen)`

// Store owns the persisted inventory rows. It implements model.Writer.
type Store struct {
	db *sql.DB
}

// Open creates or opens the inventory database at path, applying pragmas
// and the schema. Idempotent: safe to call against an existing database.
//
// SQLite allows one writer at a time, so the pool is capped at a single
// connection; WAL mode keeps reads concurrent with the writer.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WriteBatch applies one flushed batch inside a single transaction: host
// upserts first, then protocol counters, then connection counters. On any
// failure the whole batch rolls back, leaving the store internally
// consistent.
func (s *Store) WriteBatch(ctx context.Context, batch *model.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flush transaction: %w", err)
	}

	for _, h := range batch.Hosts {
		firstSeen := h.FirstSeen
		if firstSeen.IsZero() {
			firstSeen = h.LastSeen
		}
		if _, err := tx.ExecContext(ctx, upsertHostSQL,
			h.IP, h.MAC, firstSeen.Unix(), h.LastSeen.Unix()); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert host %s: %w", h.IP, err)
		}
	}
	for _, p := range batch.Protocols {
		if _, err := tx.ExecContext(ctx, upsertProtocolSQL,
			p.IP, p.Protocol, p.LastSeen.Unix()); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert protocol %s/%s: %w", p.IP, p.Protocol, err)
		}
	}
	for _, c := range batch.Connections {
		if _, err := tx.ExecContext(ctx, upsertConnectionSQL,
			c.SrcIP, c.DstIP, c.DstPort, c.Protocol, c.LastSeen.Unix()); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert connection %s->%s:%d: %w", c.SrcIP, c.DstIP, c.DstPort, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flush transaction: %w", err)
	}
	return nil
}

// Hosts lists every inventoried host, most recently seen first.
func (s *Store) Hosts(ctx context.Context) ([]model.Host, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ip, mac, first_seen, last_seen FROM hosts ORDER BY last_seen DESC, ip ASC`)
	if err != nil {
		return nil, fmt.Errorf("query hosts: %w", err)
	}
	defer rows.Close()

	var hosts []model.Host
	for rows.Next() {
		var h model.Host
		var firstSeen, lastSeen int64
		if err := rows.Scan(&h.IP, &h.MAC, &firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan host row: %w", err)
		}
		h.FirstSeen = time.Unix(firstSeen, 0).UTC()
		h.LastSeen = time.Unix(lastSeen, 0).UTC()
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

// HostProtocols lists a host's protocol counters, busiest first.
func (s *Store) HostProtocols(ctx context.Context, ip string, limit int) ([]model.ProtocolObservation, error) {
	if limit <= 0 {
		limit = DefaultRowLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT protocol, packet_count, last_seen FROM protocols
		 WHERE ip = ? ORDER BY packet_count DESC, protocol ASC LIMIT ?`, ip, limit)
	if err != nil {
		return nil, fmt.Errorf("query protocols for %s: %w", ip, err)
	}
	defer rows.Close()

	var obs []model.ProtocolObservation
	for rows.Next() {
		var o model.ProtocolObservation
		var lastSeen int64
		if err := rows.Scan(&o.Protocol, &o.PacketCount, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan protocol row: %w", err)
		}
		o.LastSeen = time.Unix(lastSeen, 0).UTC()
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// HostConnections lists connections originating at a host, busiest first.
func (s *Store) HostConnections(ctx context.Context, ip string, limit int) ([]model.Connection, error) {
	if limit <= 0 {
		limit = DefaultRowLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT dest_ip, dest_port, protocol, packet_count, last_seen FROM connections
		 WHERE source_ip = ? ORDER BY packet_count DESC, dest_ip ASC, dest_port ASC LIMIT ?`, ip, limit)
	if err != nil {
		return nil, fmt.Errorf("query connections for %s: %w", ip, err)
	}
	defer rows.Close()

	var conns []model.Connection
	for rows.Next() {
		var c model.Connection
		var lastSeen int64
		if err := rows.Scan(&c.DestIP, &c.DestPort, &c.Protocol, &c.PacketCount, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan connection row: %w", err)
		}
		c.LastSeen = time.Unix(lastSeen, 0).UTC()
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// ProtocolSummary returns the host's topN most-frequent protocol names as
// one display string, or "None" when the host has no observations.
func (s *Store) ProtocolSummary(ctx context.Context, ip string, topN int) (string, error) {
	if topN <= 0 {
		topN = DefaultSummarySize
	}
	obs, err := s.HostProtocols(ctx, ip, topN)
	if err != nil {
		return "", err
	}
	if len(obs) == 0 {
		return noProtocols, nil
	}
	names := make([]string, len(obs))
	for i, o := range obs {
		names[i] = o.Protocol
	}
	return strings.Join(names, ", "), nil
}
