package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"NetInventory/internal/model"
	"NetInventory/internal/probe"
	"NetInventory/internal/zeek"
	"NetInventory/pkg/pcap"
)

// Logical source names; the engine maps them back to <name>.log files.
const (
	hostSource = "asset_log"
	connSource = "conn"
)

func main() {
	pcapPath := flag.String("pcap", "", "Capture file to replay into observation records (required).")
	spoolDir := flag.String("spool", "", "Spool directory to append record lines to.")
	natsURL := flag.String("nats", "", "NATS server URL; when set, records are published instead of spooled.")
	subject := flag.String("subject", "inventory.records", "Root NATS subject for published records.")
	flag.Parse()

	if *pcapPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -pcap flag is required.")
		flag.Usage()
		os.Exit(1)
	}
	if *natsURL == "" && *spoolDir == "" {
		fmt.Fprintln(os.Stderr, "Error: one of -spool or -nats is required.")
		flag.Usage()
		os.Exit(1)
	}

	emit := spoolEmitter(*spoolDir)
	if *natsURL != "" {
		pub, err := probe.NewPublisher(*natsURL, *subject)
		if err != nil {
			log.Fatalf("Failed to connect publisher: %v", err)
		}
		defer pub.Close()
		emit = pub.Publish
	}

	reader, err := pcap.NewReader(*pcapPath)
	if err != nil {
		log.Fatalf("Failed to open capture file: %v", err)
	}
	defer reader.Close()

	out := make(chan model.Record, 1024)
	go reader.ReadRecords(out)

	sightings, conns := 0, 0
	for rec := range out {
		switch r := rec.(type) {
		case model.HostSighting:
			line, err := zeek.EncodeHostLine(r)
			if err != nil {
				log.Printf("Failed to encode host sighting: %v", err)
				continue
			}
			if err := emit(hostSource, line); err != nil {
				log.Fatalf("Failed to emit record: %v", err)
			}
			sightings++
		case model.ConnRecord:
			line, err := zeek.EncodeConnLine(r)
			if err != nil {
				log.Printf("Failed to encode connection record: %v", err)
				continue
			}
			if err := emit(connSource, line); err != nil {
				log.Fatalf("Failed to emit record: %v", err)
			}
			conns++
		}
	}
	log.Printf("Done: %d host sightings, %d connection records from %s", sightings, conns, *pcapPath)
}

// spoolEmitter appends record lines to <spool>/<source>.log, the same
// layout the engine's ingestion passes consume.
func spoolEmitter(dir string) func(source string, line []byte) error {
	return func(source string, line []byte) error {
		f, err := os.OpenFile(filepath.Join(dir, source+".log"),
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := f.Write(append(line, '\n')); err != nil {
			return err
		}
		return nil
	}
}
