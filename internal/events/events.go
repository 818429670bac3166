// Package events publishes change notifications for tabs, pages, sections
// and files to NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	StreamName = "WOWNOTE"

	TabCreated     = "wownote.tabs.created"
	TabUpdated     = "wownote.tabs.updated"
	TabDeleted     = "wownote.tabs.deleted"
	PageCreated    = "wownote.pages.created"
	PageUpdated    = "wownote.pages.updated"
	PageDeleted    = "wownote.pages.deleted"
	SectionCreated = "wownote.sections.created"
	SectionUpdated = "wownote.sections.updated"
	SectionDeleted = "wownote.sections.deleted"
	FileUploaded   = "wownote.files.uploaded"
	FileDeleted    = "wownote.files.deleted"
	FileMoved      = "wownote.files.moved"
	FileCopied     = "wownote.files.copied"
	FileExtracted  = "wownote.files.extracted"
)

// Publisher sends an event. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Bus wraps a NATS JetStream connection.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Connect dials url and makes sure the wownote stream exists.
func Connect(url string, opts ...nats.Option) (*Bus, error) {
	opts = append([]nats.Option{nats.Name("wownote"), nats.Timeout(5 * time.Second)}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	if _, err := js.StreamInfo(StreamName); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			nc.Close()
			return nil, err
		}
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:     StreamName,
			Subjects: []string{"wownote.>"},
			MaxAge:   7 * 24 * time.Hour,
		}); err != nil {
			nc.Close()
			return nil, err
		}
	}

	return &Bus{conn: nc, js: js}, nil
}

// Close drains the connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish encodes payload as JSON and publishes it to subject.
func (b *Bus) Publish(ctx context.Context, subject string, payload any) error {
	if b == nil {
		return errors.New("nil bus")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = b.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// Nop discards every event. Used when NATS is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
