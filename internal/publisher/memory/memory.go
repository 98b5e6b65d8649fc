// Package memory implements an in-process event publisher used for local
// runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// Event is one published message.
type Event struct {
	ID    string
	Topic string
	Data  []byte
}

// Publisher records events in memory.
type Publisher struct {
	mu     sync.Mutex
	nextID int
	events []Event
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{nextID: 1}
}

// Publish marshals the payload to JSON and appends it to the event log.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	id := strconv.Itoa(p.nextID)
	p.nextID++
	p.events = append(p.events, Event{ID: id, Topic: topic, Data: data})
	return id, nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
