package pcap

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// buildPacket serializes an Ethernet/IPv4 frame with the given transport
// layer so ParsePacket can be exercised without a capture file.
func buildPacket(t *testing.T, transport gopacket.SerializableLayer, ipProto layers.IPProtocol) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e},
		DstMAC:       net.HardwareAddr{0x00, 0x0f, 0x1e, 0x2d, 0x3c, 0x4b},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: ipProto,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	if tcp, ok := transport.(*layers.TCP); ok {
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			t.Fatalf("checksum setup failed: %v", err)
		}
	}
	if udp, ok := transport.(*layers.UDP); ok {
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			t.Fatalf("checksum setup failed: %v", err)
		}
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, transport); err != nil {
		t.Fatalf("failed to serialize packet: %v", err)
	}
	return buf.Bytes()
}

func TestParsePacket_TCP(t *testing.T) {
	data := buildPacket(t, &layers.TCP{SrcPort: 49152, DstPort: 502, SYN: true}, layers.IPProtocolTCP)
	ts := time.Unix(1700000000, 0)

	sighting, conn, err := ParsePacket(data, ts)
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	if sighting.IP != "10.0.0.1" {
		t.Errorf("sighting ip = %q", sighting.IP)
	}
	if sighting.MAC != "00:1a:2b:3c:4d:5e" {
		t.Errorf("sighting mac = %q", sighting.MAC)
	}
	if !sighting.Timestamp.Equal(ts) {
		t.Errorf("sighting timestamp = %v, want %v", sighting.Timestamp, ts)
	}
	if conn.OrigIP != "10.0.0.1" || conn.RespIP != "10.0.0.2" {
		t.Errorf("conn endpoints = %q -> %q", conn.OrigIP, conn.RespIP)
	}
	if conn.RespPort != 502 || conn.Proto != "TCP" {
		t.Errorf("conn = %+v", conn)
	}
}

func TestParsePacket_UDP(t *testing.T) {
	data := buildPacket(t, &layers.UDP{SrcPort: 49152, DstPort: 53}, layers.IPProtocolUDP)

	_, conn, err := ParsePacket(data, time.Now())
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}
	if conn.Proto != "UDP" || conn.RespPort != 53 {
		t.Errorf("conn = %+v", conn)
	}
}

func TestParsePacket_RejectsNonIP(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e},
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   eth.SrcMAC,
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    []byte{10, 0, 0, 2},
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp); err != nil {
		t.Fatalf("failed to serialize packet: %v", err)
	}

	if _, _, err := ParsePacket(buf.Bytes(), time.Now()); err == nil {
		t.Error("ARP packet should be rejected")
	}
}
