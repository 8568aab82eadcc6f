package probe

import (
	"log"
	"strings"

	"github.com/nats-io/nats.go"
)

// Spooler lands a record line in a named spool file. The engine's
// orchestrator implements it under the same mutex that guards ingestion
// passes, so a delivery can never race a source being read and cleared.
type Spooler interface {
	Append(file string, line []byte) error
}

// Subscriber receives record lines and hands them to the spooler, where
// the next ingestion pass consumes them. Delivery into the spool is
// at-least-once; the aggregation downstream absorbs replays.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	spool   Spooler
}

// NewSubscriber creates a subscriber delivering into the given spooler.
func NewSubscriber(url, subject string, spool Spooler) (*Subscriber, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", url)
	return &Subscriber{nc: nc, subject: subject, spool: spool}, nil
}

// Start subscribes to every source token under the configured subject.
func (s *Subscriber) Start() error {
	sub, err := s.nc.Subscribe(s.subject+".>", func(msg *nats.Msg) {
		source := strings.TrimPrefix(msg.Subject, s.subject+".")
		if source == "" || strings.ContainsAny(source, "./\\") {
			log.Printf("probe: dropping record on unexpected subject %q", msg.Subject)
			return
		}
		if err := s.spool.Append(source+".log", msg.Data); err != nil {
			log.Printf("probe: failed to spool record for %s: %v", source, err)
		}
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s.>'", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
