// Package pcap turns packets from a capture file into the observation
// record shapes the ingestion pipeline consumes.
package pcap

import (
	"fmt"
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	gopcap "github.com/google/gopacket/pcap"

	"NetInventory/internal/model"
)

// Reader reads packets from a capture file.
type Reader struct {
	handle *gopcap.Handle
}

// NewReader opens the given capture file for offline reading.
func NewReader(filePath string) (*Reader, error) {
	handle, err := gopcap.OpenOffline(filePath)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle}, nil
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}

// ParsePacket decodes one raw packet and derives a host sighting for the
// source endpoint plus a connection record for the transport flow. Only
// IPv4 with TCP or UDP is supported.
func ParsePacket(data []byte, ts time.Time) (model.HostSighting, model.ConnRecord, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)

	var srcMAC string
	if l := packet.Layer(layers.LayerTypeEthernet); l != nil {
		srcMAC = l.(*layers.Ethernet).SrcMAC.String()
	}

	l := packet.Layer(layers.LayerTypeIPv4)
	if l == nil {
		return model.HostSighting{}, model.ConnRecord{}, fmt.Errorf("not an IPv4 packet")
	}
	ip := l.(*layers.IPv4)

	var dstPort int
	var proto string
	if t := packet.Layer(layers.LayerTypeTCP); t != nil {
		dstPort = int(t.(*layers.TCP).DstPort)
		proto = "TCP"
	} else if u := packet.Layer(layers.LayerTypeUDP); u != nil {
		dstPort = int(u.(*layers.UDP).DstPort)
		proto = "UDP"
	} else {
		return model.HostSighting{}, model.ConnRecord{}, fmt.Errorf("not a TCP or UDP packet")
	}

	sighting := model.HostSighting{
		IP:        ip.SrcIP.String(),
		MAC:       srcMAC,
		Timestamp: ts,
	}
	conn := model.ConnRecord{
		OrigIP:   ip.SrcIP.String(),
		RespIP:   ip.DstIP.String(),
		RespPort: dstPort,
		Proto:    proto,
	}
	return sighting, conn, nil
}

// ReadRecords reads every packet from the capture and sends the derived
// records to out, closing the channel when the capture is exhausted.
// Unsupported packets are skipped.
func (r *Reader) ReadRecords(out chan<- model.Record) {
	defer close(out)

	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	skipped := 0
	for packet := range packetSource.Packets() {
		ts := time.Now()
		if meta := packet.Metadata(); meta != nil {
			ts = meta.Timestamp
		}
		sighting, conn, err := ParsePacket(packet.Data(), ts)
		if err != nil {
			skipped++
			continue
		}
		out <- sighting
		out <- conn
	}
	if skipped > 0 {
		log.Printf("pcap: skipped %d unsupported packets", skipped)
	}
}
