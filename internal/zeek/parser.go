// Package zeek decodes the JSON line-oriented observation records produced
// by the traffic analyzer and expands them into aggregation intents.
package zeek

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"NetInventory/internal/ident"
	"NetInventory/internal/model"
)

// Line shapes as written by the analyzer (Zeek JSON streaming format).
type hostLine struct {
	IP  string  `json:"ip"`
	MAC string  `json:"mac,omitempty"`
	TS  float64 `json:"ts,omitempty"` // epoch seconds, fractional
}

type connLine struct {
	OrigH   string `json:"id.orig_h,omitempty"`
	RespH   string `json:"id.resp_h,omitempty"`
	RespP   *int   `json:"id.resp_p,omitempty"`
	Proto   string `json:"proto,omitempty"`
	Service string `json:"service,omitempty"`
}

type appProtoLine struct {
	OrigH string `json:"id.orig_h,omitempty"`
	RespH string `json:"id.resp_h,omitempty"`
}

// Skip reports whether a raw line carries no record: blank lines and
// '#'-prefixed comment lines.
func Skip(line []byte) bool {
	line = bytes.TrimSpace(line)
	return len(line) == 0 || line[0] == '#'
}

// ParseHostLine decodes one host-sighting record. A sighting without an
// address is rejected outright; a broadcast hardware address is treated as
// absent.
func ParseHostLine(line []byte) (model.Record, error) {
	var raw hostLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("decode host sighting: %w", err)
	}
	if raw.IP == "" {
		return nil, fmt.Errorf("host sighting without ip")
	}
	mac := strings.ToLower(raw.MAC)
	if mac == ident.BroadcastMAC {
		mac = ""
	}
	rec := model.HostSighting{IP: raw.IP, MAC: mac}
	if raw.TS > 0 {
		sec, frac := math.Modf(raw.TS)
		rec.Timestamp = time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
	}
	return rec, nil
}

// ParseConnLine decodes one connection record. The transport protocol
// defaults to UNKNOWN; protocol and service names are upper-cased. A line
// naming neither endpoint is rejected.
func ParseConnLine(line []byte) (model.Record, error) {
	var raw connLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("decode connection record: %w", err)
	}
	if raw.OrigH == "" && raw.RespH == "" {
		return nil, fmt.Errorf("connection record without endpoints")
	}
	proto := strings.ToUpper(raw.Proto)
	if proto == "" {
		proto = "UNKNOWN"
	}
	port := -1
	if raw.RespP != nil {
		port = *raw.RespP
	}
	return model.ConnRecord{
		OrigIP:   raw.OrigH,
		RespIP:   raw.RespH,
		RespPort: port,
		Proto:    proto,
		Service:  strings.ToUpper(raw.Service),
	}, nil
}

// AppProtoParser returns a parse function for a per-protocol log source;
// every record it yields carries the source's fixed label.
func AppProtoParser(label string) func(line []byte) (model.Record, error) {
	return func(line []byte) (model.Record, error) {
		var raw appProtoLine
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", label, err)
		}
		if raw.OrigH == "" && raw.RespH == "" {
			return nil, fmt.Errorf("%s record without endpoints", label)
		}
		return model.AppProtoRecord{OrigIP: raw.OrigH, RespIP: raw.RespH, Protocol: label}, nil
	}
}

// EncodeHostLine renders a host sighting back into the line shape
// ParseHostLine accepts. Used by the capture probe.
func EncodeHostLine(rec model.HostSighting) ([]byte, error) {
	raw := hostLine{IP: rec.IP, MAC: rec.MAC}
	if !rec.Timestamp.IsZero() {
		raw.TS = float64(rec.Timestamp.UnixNano()) / float64(time.Second)
	}
	return json.Marshal(raw)
}

// EncodeConnLine renders a connection record back into the line shape
// ParseConnLine accepts.
func EncodeConnLine(rec model.ConnRecord) ([]byte, error) {
	raw := connLine{
		OrigH:   rec.OrigIP,
		RespH:   rec.RespIP,
		Proto:   rec.Proto,
		Service: rec.Service,
	}
	if rec.RespPort >= 0 {
		port := rec.RespPort
		raw.RespP = &port
	}
	return json.Marshal(raw)
}

// Expand converts a decoded record into the intents it implies, applying
// identifier validation and the broadcast/multicast filter per endpoint: a
// bad endpoint loses only its own intents, never its sibling's. A
// connection intent additionally requires both endpoints and an in-range
// responder port.
func Expand(rec model.Record) model.Intents {
	switch r := rec.(type) {
	case model.HostSighting:
		return expandHost(r)
	case model.ConnRecord:
		return expandConn(r)
	case model.AppProtoRecord:
		return expandAppProto(r)
	default:
		return model.Intents{}
	}
}

// usableEndpoint is the single gate every address passes before any of its
// intents are considered.
func usableEndpoint(ip string) bool {
	return ip != "" && ident.ValidIP(ip) && !ident.BroadcastOrMulticast(ip)
}

func expandHost(r model.HostSighting) model.Intents {
	if !usableEndpoint(r.IP) {
		return model.Intents{}
	}
	mac := r.MAC
	if !ident.ValidMAC(mac) {
		// A malformed hardware address degrades to "absent"; the sighting
		// itself still counts.
		mac = ""
	}
	return model.Intents{
		Hosts: []model.HostIntent{{IP: r.IP, MAC: mac, FirstSeen: r.Timestamp}},
	}
}

func expandConn(r model.ConnRecord) model.Intents {
	var in model.Intents
	protoOK := ident.ValidProtocolName(r.Proto)
	serviceOK := r.Service != "" && ident.ValidProtocolName(r.Service)

	for _, ip := range []string{r.OrigIP, r.RespIP} {
		if !usableEndpoint(ip) {
			continue
		}
		in.Hosts = append(in.Hosts, model.HostIntent{IP: ip})
		if protoOK {
			in.Protocols = append(in.Protocols, model.ProtoKey{IP: ip, Protocol: r.Proto})
		}
		if serviceOK {
			in.Protocols = append(in.Protocols, model.ProtoKey{IP: ip, Protocol: r.Service})
		}
	}

	if protoOK && r.RespPort >= 0 && r.RespPort <= 65535 &&
		usableEndpoint(r.OrigIP) && usableEndpoint(r.RespIP) {
		in.Connections = append(in.Connections, model.ConnKey{
			SrcIP:    r.OrigIP,
			DstIP:    r.RespIP,
			DstPort:  r.RespPort,
			Protocol: r.Proto,
		})
	}
	return in
}

func expandAppProto(r model.AppProtoRecord) model.Intents {
	if !ident.ValidProtocolName(r.Protocol) {
		return model.Intents{}
	}
	var in model.Intents
	for _, ip := range []string{r.OrigIP, r.RespIP} {
		if !usableEndpoint(ip) {
			continue
		}
		in.Hosts = append(in.Hosts, model.HostIntent{IP: ip})
		in.Protocols = append(in.Protocols, model.ProtoKey{IP: ip, Protocol: r.Protocol})
	}
	return in
}
