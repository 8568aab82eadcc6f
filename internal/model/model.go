package model

import (
	"context"
	"time"
)

// Record is a single observation record decoded from one log line. The
// traffic analyzer emits three shapes, one concrete type each; a parse
// either yields a fully-populated record or fails, never a partial one.
type Record interface {
	record()
}

// HostSighting reports that an address was seen on the wire, optionally
// with its hardware address and the capture timestamp of the sighting.
type HostSighting struct {
	IP        string
	MAC       string    // empty when absent; the all-ones broadcast value is normalized to empty
	Timestamp time.Time // zero when the record carried no timestamp
}

// ConnRecord describes one transport connection between two endpoints.
type ConnRecord struct {
	OrigIP   string
	RespIP   string
	RespPort int // -1 when the record carried no responder port
	Proto    string
	Service  string // application service name, upper-cased; empty when unknown
}

// AppProtoRecord is an application-protocol sighting from a per-protocol
// log; Protocol is the fixed label of the source that produced it.
type AppProtoRecord struct {
	OrigIP   string
	RespIP   string
	Protocol string
}

func (HostSighting) record()   {}
func (ConnRecord) record()     {}
func (AppProtoRecord) record() {}

// HostIntent is a pending create-or-touch of a host row.
type HostIntent struct {
	IP        string
	MAC       string
	FirstSeen time.Time // zero when unknown; the store falls back to last-seen
}

// ProtoKey identifies one (host, protocol) observation counter.
type ProtoKey struct {
	IP       string
	Protocol string
}

// ConnKey identifies one connection counter by its 4-tuple.
type ConnKey struct {
	SrcIP    string
	DstIP    string
	DstPort  int
	Protocol string
}

// Intents is everything a single record contributes to the pending batch.
type Intents struct {
	Hosts       []HostIntent
	Protocols   []ProtoKey
	Connections []ConnKey
}

// Empty reports whether the record contributed nothing.
func (in Intents) Empty() bool {
	return len(in.Hosts) == 0 && len(in.Protocols) == 0 && len(in.Connections) == 0
}

// HostRow is one coalesced host update inside a flush batch.
type HostRow struct {
	IP        string
	MAC       string
	FirstSeen time.Time
	LastSeen  time.Time
}

// ProtoRow is one protocol counter increment inside a flush batch.
type ProtoRow struct {
	IP       string
	Protocol string
	LastSeen time.Time
}

// ConnRow is one connection counter increment inside a flush batch.
type ConnRow struct {
	SrcIP    string
	DstIP    string
	DstPort  int
	Protocol string
	LastSeen time.Time
}

// Batch is the payload of one flush. Every protocol and connection row
// stands for exactly one counter increment.
type Batch struct {
	Hosts       []HostRow
	Protocols   []ProtoRow
	Connections []ConnRow
}

// Len returns the total number of rows in the batch.
func (b *Batch) Len() int {
	return len(b.Hosts) + len(b.Protocols) + len(b.Connections)
}

// Writer persists one flushed batch. The implementation must apply the
// whole batch transactionally: either every row lands or none does.
type Writer interface {
	WriteBatch(ctx context.Context, batch *Batch) error
}

// Host is a persisted inventory row as returned by read queries.
type Host struct {
	IP        string    `json:"ip"`
	MAC       string    `json:"mac"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// ProtocolObservation is one protocol counter for a host.
type ProtocolObservation struct {
	Protocol    string    `json:"protocol"`
	PacketCount int64     `json:"packet_count"`
	LastSeen    time.Time `json:"last_seen"`
}

// Connection is one connection counter originating from a host.
type Connection struct {
	DestIP      string    `json:"dest_ip"`
	DestPort    int       `json:"dest_port"`
	Protocol    string    `json:"protocol"`
	PacketCount int64     `json:"packet_count"`
	LastSeen    time.Time `json:"last_seen"`
}
