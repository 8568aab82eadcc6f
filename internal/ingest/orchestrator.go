// Package ingest drives passes over the analyzer's spool directory: parse
// every available log line, flush the aggregation, clear the consumed file.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"NetInventory/internal/aggregator"
	"NetInventory/internal/model"
	"NetInventory/internal/store"
	"NetInventory/internal/zeek"
)

// HostLogFile and ConnLogFile are the fixed analyzer outputs; the
// application-protocol logs are configured per deployment.
const (
	HostLogFile = "asset_log.log"
	ConnLogFile = "conn.log"
)

// Source is one line-delimited log file in the spool directory together
// with the record shape its lines decode as.
type Source struct {
	File  string
	Parse func(line []byte) (model.Record, error)
}

// Sources builds the standard source set: the host-sighting log, the
// connection log, and one source per application-protocol label keyed by
// file name (e.g. "modbus.log" -> "MODBUS").
func Sources(appProtos map[string]string) []Source {
	srcs := []Source{
		{File: HostLogFile, Parse: zeek.ParseHostLine},
		{File: ConnLogFile, Parse: zeek.ParseConnLine},
	}
	files := make([]string, 0, len(appProtos))
	for file := range appProtos {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		srcs = append(srcs, Source{File: file, Parse: zeek.AppProtoParser(appProtos[file])})
	}
	return srcs
}

// Orchestrator owns the aggregator and serializes ingestion passes. Read
// accessors force a flush first, so queries always see a durable view that
// includes everything already parsed.
type Orchestrator struct {
	mu      sync.Mutex
	dir     string
	agg     *aggregator.Aggregator
	store   *store.Store
	sources []Source
	rowCap  int
	topN    int
	now     func() time.Time
}

// New creates an orchestrator over the spool directory dir. rowCap caps
// protocol/connection listings (non-positive selects the store default);
// topN sizes protocol summaries.
func New(dir string, agg *aggregator.Aggregator, st *store.Store, sources []Source, rowCap, topN int) *Orchestrator {
	if rowCap <= 0 {
		rowCap = store.DefaultRowLimit
	}
	if topN <= 0 {
		topN = store.DefaultSummarySize
	}
	return &Orchestrator{
		dir:     dir,
		agg:     agg,
		store:   st,
		sources: sources,
		rowCap:  rowCap,
		topN:    topN,
		now:     time.Now,
	}
}

// RunPass processes each source once: absent or empty files are skipped,
// everything else is parsed line by line into the aggregator, flushed, and
// the file truncated to zero, marking those bytes consumed. An I/O failure
// on one source leaves that file intact for retry and does not stop the
// pass; the first such error is returned.
func (o *Orchestrator) RunPass(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var firstErr error
	for _, src := range o.sources {
		if err := o.consume(ctx, src); err != nil {
			log.Printf("ingest: source %s: %v", src.File, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// maxLineSize bounds a single spooled record line.
const maxLineSize = 1 << 20

func (o *Orchestrator) consume(ctx context.Context, src Source) error {
	path := filepath.Join(o.dir, src.File)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read: %w", err)
	}

	parsed, skipped := 0, 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if zeek.Skip(line) {
			continue
		}
		rec, err := src.Parse(bytes.TrimSpace(line))
		if err != nil {
			// Malformed record: skip, keep the pass alive.
			skipped++
			continue
		}
		o.agg.Merge(zeek.Expand(rec), o.now())
		parsed++
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		// Partial read: leave the file intact; the merged records replay
		// next pass, which the upserts absorb.
		return fmt.Errorf("read: %w", scanErr)
	}

	if err := o.agg.Flush(ctx); err != nil {
		// The batch is already discarded; clearing the source anyway keeps
		// ingestion live rather than replaying bytes against a store that
		// just refused them.
		log.Printf("ingest: flush after %s failed, batch dropped: %v", src.File, err)
	}

	if err := os.Truncate(path, 0); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if parsed > 0 || skipped > 0 {
		log.Printf("ingest: %s: %d records, %d skipped", src.File, parsed, skipped)
	}
	return nil
}

// Append lands one record line in the named spool file. It holds the
// same mutex as RunPass, so a delivery can never slip between a source
// being read and truncated; at worst it waits out the pass in flight and
// is consumed by the next one.
func (o *Orchestrator) Append(file string, line []byte) error {
	if file == "" || strings.ContainsAny(file, "/\\") {
		return fmt.Errorf("invalid spool file name %q", file)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(o.dir, file),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("append record: %w", err)
		}
	}
	return nil
}

// Hosts returns the full inventory, most recently seen first.
func (o *Orchestrator) Hosts(ctx context.Context) ([]model.Host, error) {
	o.flushForRead(ctx)
	return o.store.Hosts(ctx)
}

// HostProtocols returns a host's protocol counters, busiest first.
func (o *Orchestrator) HostProtocols(ctx context.Context, ip string) ([]model.ProtocolObservation, error) {
	o.flushForRead(ctx)
	return o.store.HostProtocols(ctx, ip, o.rowCap)
}

// HostConnections returns a host's connections, busiest first. A
// non-positive or over-cap limit falls back to the configured cap.
func (o *Orchestrator) HostConnections(ctx context.Context, ip string, limit int) ([]model.Connection, error) {
	if limit <= 0 || limit > o.rowCap {
		limit = o.rowCap
	}
	o.flushForRead(ctx)
	return o.store.HostConnections(ctx, ip, limit)
}

// ProtocolSummary returns the display summary of a host's top protocols.
func (o *Orchestrator) ProtocolSummary(ctx context.Context, ip string) (string, error) {
	o.flushForRead(ctx)
	return o.store.ProtocolSummary(ctx, ip, o.topN)
}

func (o *Orchestrator) flushForRead(ctx context.Context) {
	if err := o.agg.Flush(ctx); err != nil {
		log.Printf("ingest: flush before read failed, batch dropped: %v", err)
	}
}
