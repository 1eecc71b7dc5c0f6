// Package memory records store notifications as the Pub/Sub publisher would send them,
// so tests and dry runs can read back exactly what subscribers would receive.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
)

// Message is one recorded publish: the JSON body and attributes a subscriber would see.
type Message struct {
	ID         string
	Topic      string
	Data       []byte
	Attributes map[string]string
}

// Decode unmarshals the message body into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// StoreNo returns the store number the notification announces, or "" when it carries none.
func (m Message) StoreNo() string {
	return gjson.GetBytes(m.Data, "store_no").String()
}

// Publisher keeps every message in publish order.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish encodes payload to JSON and records it under topic.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode notification for %s: %w", topic, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("memory-%d", len(p.messages)+1)
	p.messages = append(p.messages, Message{
		ID:         id,
		Topic:      topic,
		Data:       data,
		Attributes: map[string]string{"content-type": "application/json"},
	})
	return id, nil
}

// Messages returns a copy of everything published, oldest first.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// StoreNumbers lists the announced store numbers on topic, in publish order.
func (p *Publisher) StoreNumbers(topic string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m.StoreNo())
		}
	}
	return out
}
