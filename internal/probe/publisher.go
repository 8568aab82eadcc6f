// Package probe carries raw observation record lines between a capture
// probe and the ingestion engine over NATS, one message per line.
package probe

import (
	"fmt"
	"log"
	"strings"

	"github.com/nats-io/nats.go"
)

// Publisher ships record lines to a per-source NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher rooted at the given subject.
func NewPublisher(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", url)
	return &Publisher{nc: nc, subject: subject}, nil
}

// Publish sends one record line for the named logical source. The source
// name becomes the final subject token, so it must be a single token.
func (p *Publisher) Publish(source string, line []byte) error {
	if source == "" || strings.ContainsAny(source, ". */\\>") {
		return fmt.Errorf("invalid source name %q", source)
	}
	return p.nc.Publish(p.subject+"."+source, line)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
