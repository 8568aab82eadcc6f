package zeek

import (
	"testing"
	"time"

	"NetInventory/internal/model"
)

func TestParseHostLine(t *testing.T) {
	rec, err := ParseHostLine([]byte(`{"ip":"192.168.1.10","mac":"AA:BB:CC:00:11:22","ts":1700000000.5}`))
	if err != nil {
		t.Fatalf("ParseHostLine failed: %v", err)
	}
	hs, ok := rec.(model.HostSighting)
	if !ok {
		t.Fatalf("expected HostSighting, got %T", rec)
	}
	if hs.IP != "192.168.1.10" {
		t.Errorf("ip = %q", hs.IP)
	}
	if hs.MAC != "aa:bb:cc:00:11:22" {
		t.Errorf("mac = %q, want lower-cased", hs.MAC)
	}
	want := time.Unix(1700000000, 500000000).UTC()
	if !hs.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", hs.Timestamp, want)
	}
}

func TestParseHostLine_BroadcastMACIsAbsent(t *testing.T) {
	rec, err := ParseHostLine([]byte(`{"ip":"192.168.1.10","mac":"FF:FF:FF:FF:FF:FF"}`))
	if err != nil {
		t.Fatalf("ParseHostLine failed: %v", err)
	}
	if mac := rec.(model.HostSighting).MAC; mac != "" {
		t.Errorf("broadcast mac should be treated as absent, got %q", mac)
	}
}

func TestParseHostLine_FailsClosed(t *testing.T) {
	for _, line := range []string{
		`{"mac":"aa:bb:cc:00:11:22"}`, // no ip
		`{"ip":"192.168.1.10"`,        // truncated JSON
		`1625097600.123 192.168.1.10`, // not JSON at all
	} {
		if _, err := ParseHostLine([]byte(line)); err == nil {
			t.Errorf("ParseHostLine(%q) should have failed", line)
		}
	}
}

func TestParseConnLine(t *testing.T) {
	rec, err := ParseConnLine([]byte(`{"id.orig_h":"10.0.0.1","id.resp_h":"10.0.0.2","id.resp_p":502,"proto":"tcp","service":"modbus"}`))
	if err != nil {
		t.Fatalf("ParseConnLine failed: %v", err)
	}
	cr := rec.(model.ConnRecord)
	if cr.Proto != "TCP" || cr.Service != "MODBUS" {
		t.Errorf("proto/service not upper-cased: %q %q", cr.Proto, cr.Service)
	}
	if cr.RespPort != 502 {
		t.Errorf("resp port = %d", cr.RespPort)
	}
}

func TestParseConnLine_Defaults(t *testing.T) {
	rec, err := ParseConnLine([]byte(`{"id.orig_h":"10.0.0.1"}`))
	if err != nil {
		t.Fatalf("ParseConnLine failed: %v", err)
	}
	cr := rec.(model.ConnRecord)
	if cr.Proto != "UNKNOWN" {
		t.Errorf("proto = %q, want UNKNOWN", cr.Proto)
	}
	if cr.RespPort != -1 {
		t.Errorf("resp port = %d, want -1 for absent", cr.RespPort)
	}
	if _, err := ParseConnLine([]byte(`{"proto":"tcp"}`)); err == nil {
		t.Error("record without endpoints should fail")
	}
}

func TestAppProtoParser(t *testing.T) {
	parse := AppProtoParser("S7COMM")
	rec, err := parse([]byte(`{"id.orig_h":"10.0.0.1","id.resp_h":"10.0.0.9"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	ap := rec.(model.AppProtoRecord)
	if ap.Protocol != "S7COMM" {
		t.Errorf("protocol = %q, want source label", ap.Protocol)
	}
}

func TestSkip(t *testing.T) {
	if !Skip([]byte("#separator \\x09")) || !Skip([]byte("  ")) || !Skip(nil) {
		t.Error("comments and blank lines must be skipped")
	}
	if Skip([]byte(`{"ip":"10.0.0.1"}`)) {
		t.Error("record lines must not be skipped")
	}
}

func TestExpand_HostSighting(t *testing.T) {
	in := Expand(model.HostSighting{IP: "10.0.0.1", MAC: "aa:bb:cc:00:11:22"})
	if len(in.Hosts) != 1 || in.Hosts[0].MAC != "aa:bb:cc:00:11:22" {
		t.Fatalf("unexpected intents: %+v", in)
	}

	// Invalid hardware address degrades to absent, the sighting survives.
	in = Expand(model.HostSighting{IP: "10.0.0.1", MAC: "zz:zz"})
	if len(in.Hosts) != 1 || in.Hosts[0].MAC != "" {
		t.Fatalf("invalid mac should degrade to absent: %+v", in)
	}

	// Broadcast and multicast addresses contribute nothing.
	for _, ip := range []string{"10.0.0.255", "230.1.1.1", "not-an-ip", ""} {
		if in := Expand(model.HostSighting{IP: ip}); !in.Empty() {
			t.Errorf("Expand(%q) should be empty, got %+v", ip, in)
		}
	}
}

func TestExpand_ConnRecord(t *testing.T) {
	in := Expand(model.ConnRecord{
		OrigIP: "10.0.0.1", RespIP: "10.0.0.2", RespPort: 502,
		Proto: "TCP", Service: "MODBUS",
	})
	if len(in.Hosts) != 2 {
		t.Errorf("want host intents for both endpoints, got %d", len(in.Hosts))
	}
	if len(in.Protocols) != 4 {
		t.Errorf("want proto+service intents for both endpoints, got %d", len(in.Protocols))
	}
	if len(in.Connections) != 1 {
		t.Fatalf("want one connection intent, got %d", len(in.Connections))
	}
	want := model.ConnKey{SrcIP: "10.0.0.1", DstIP: "10.0.0.2", DstPort: 502, Protocol: "TCP"}
	if in.Connections[0] != want {
		t.Errorf("connection intent = %+v, want %+v", in.Connections[0], want)
	}
}

func TestExpand_ConnRecord_PortOutOfRange(t *testing.T) {
	in := Expand(model.ConnRecord{
		OrigIP: "10.0.0.1", RespIP: "10.0.0.2", RespPort: 70000, Proto: "TCP",
	})
	if len(in.Connections) != 0 {
		t.Error("out-of-range port must not yield a connection intent")
	}
	if len(in.Hosts) != 2 || len(in.Protocols) != 2 {
		t.Errorf("endpoint intents must survive a bad port: %+v", in)
	}
}

func TestExpand_ConnRecord_BadEndpointDropsOnlyItself(t *testing.T) {
	in := Expand(model.ConnRecord{
		OrigIP: "10.0.0.1", RespIP: "230.1.1.1", RespPort: 53, Proto: "UDP",
	})
	if len(in.Connections) != 0 {
		t.Error("a filtered endpoint must suppress the connection intent")
	}
	if len(in.Hosts) != 1 || in.Hosts[0].IP != "10.0.0.1" {
		t.Errorf("valid endpoint's intents must survive: %+v", in.Hosts)
	}
	for _, p := range in.Protocols {
		if p.IP != "10.0.0.1" {
			t.Errorf("filtered endpoint leaked a protocol intent: %+v", p)
		}
	}
}

func TestExpand_AppProtoRecord(t *testing.T) {
	in := Expand(model.AppProtoRecord{OrigIP: "10.0.0.1", RespIP: "10.0.0.255", Protocol: "MODBUS"})
	if len(in.Hosts) != 1 || len(in.Protocols) != 1 {
		t.Fatalf("only the valid endpoint should contribute: %+v", in)
	}
	if in.Protocols[0] != (model.ProtoKey{IP: "10.0.0.1", Protocol: "MODBUS"}) {
		t.Errorf("unexpected protocol intent: %+v", in.Protocols[0])
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	line, err := EncodeConnLine(model.ConnRecord{
		OrigIP: "10.0.0.1", RespIP: "10.0.0.2", RespPort: 443, Proto: "TCP",
	})
	if err != nil {
		t.Fatalf("EncodeConnLine failed: %v", err)
	}
	rec, err := ParseConnLine(line)
	if err != nil {
		t.Fatalf("ParseConnLine(%s) failed: %v", line, err)
	}
	cr := rec.(model.ConnRecord)
	if cr.OrigIP != "10.0.0.1" || cr.RespPort != 443 || cr.Proto != "TCP" {
		t.Errorf("round trip mangled record: %+v", cr)
	}
}
