// Package aggregator coalesces parsed observation intents into pending
// in-memory maps and flushes them to a persistent writer in batches.
package aggregator

import (
	"context"
	"log"
	"sync"
	"time"

	"NetInventory/internal/model"
)

// DefaultFlushThreshold is the pending-item count that triggers an
// automatic flush.
const DefaultFlushThreshold = 5000

type pendingHost struct {
	mac       string
	firstSeen time.Time
	lastSeen  time.Time
}

// Aggregator is the uncommitted in-memory shadow of the inventory. Hosts
// coalesce per address; protocol and connection keys are tracked as sets,
// so each distinct key contributes exactly one counter increment per batch
// no matter how often it recurred. That bounds both memory and flush cost
// under replayed or bursty input. Safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	hosts     map[string]*pendingHost
	protocols map[model.ProtoKey]time.Time
	conns     map[model.ConnKey]time.Time
	threshold int
	writer    model.Writer
}

// New creates an aggregator flushing to w once the pending item count
// reaches threshold. A non-positive threshold selects the default.
func New(w model.Writer, threshold int) *Aggregator {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	a := &Aggregator{threshold: threshold, writer: w}
	a.resetLocked()
	return a
}

// Merge folds one record's intents into the pending maps, stamping now as
// the observation time. Crossing the flush threshold triggers an automatic
// flush whose error is logged rather than returned: a failed flush has
// already discarded the batch, and ingestion continues.
func (a *Aggregator) Merge(in model.Intents, now time.Time) {
	if in.Empty() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, h := range in.Hosts {
		p, ok := a.hosts[h.IP]
		if !ok {
			p = &pendingHost{mac: h.MAC, firstSeen: h.FirstSeen}
			a.hosts[h.IP] = p
		} else {
			if h.MAC != "" {
				// Last non-empty hardware address wins within the batch.
				p.mac = h.MAC
			}
			if p.firstSeen.IsZero() && !h.FirstSeen.IsZero() {
				p.firstSeen = h.FirstSeen
			}
		}
		if now.After(p.lastSeen) {
			p.lastSeen = now
		}
	}
	for _, k := range in.Protocols {
		if now.After(a.protocols[k]) {
			a.protocols[k] = now
		}
	}
	for _, k := range in.Connections {
		if now.After(a.conns[k]) {
			a.conns[k] = now
		}
	}

	if a.pendingLocked() >= a.threshold {
		if err := a.flushLocked(context.Background()); err != nil {
			log.Printf("aggregator: automatic flush failed, batch dropped: %v", err)
		}
	}
}

// Pending returns the number of distinct pending items across all maps.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingLocked()
}

// Flush writes all pending aggregation as one batch and clears it. Pending
// state is discarded even when the write fails; the caller learns about the
// failure but retrying it is not possible. Liveness over completeness.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked(ctx)
}

func (a *Aggregator) pendingLocked() int {
	return len(a.hosts) + len(a.protocols) + len(a.conns)
}

func (a *Aggregator) resetLocked() {
	a.hosts = make(map[string]*pendingHost)
	a.protocols = make(map[model.ProtoKey]time.Time)
	a.conns = make(map[model.ConnKey]time.Time)
}

func (a *Aggregator) flushLocked(ctx context.Context) error {
	if a.pendingLocked() == 0 {
		return nil
	}
	batch := &model.Batch{
		Hosts:       make([]model.HostRow, 0, len(a.hosts)),
		Protocols:   make([]model.ProtoRow, 0, len(a.protocols)),
		Connections: make([]model.ConnRow, 0, len(a.conns)),
	}
	for ip, p := range a.hosts {
		batch.Hosts = append(batch.Hosts, model.HostRow{
			IP:        ip,
			MAC:       p.mac,
			FirstSeen: p.firstSeen,
			LastSeen:  p.lastSeen,
		})
	}
	for k, seen := range a.protocols {
		batch.Protocols = append(batch.Protocols, model.ProtoRow{
			IP:       k.IP,
			Protocol: k.Protocol,
			LastSeen: seen,
		})
	}
	for k, seen := range a.conns {
		batch.Connections = append(batch.Connections, model.ConnRow{
			SrcIP:    k.SrcIP,
			DstIP:    k.DstIP,
			DstPort:  k.DstPort,
			Protocol: k.Protocol,
			LastSeen: seen,
		})
	}
	a.resetLocked()
	return a.writer.WriteBatch(ctx, batch)
}
