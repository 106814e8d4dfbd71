// Package realtime fans row change events out to the streams of the users they belong to.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
)

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event is one change to a row owned by UserID.
type Event struct {
	Table   string          `json:"table"`
	Type    string          `json:"type"`
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

func NewEvent(table, typ, userID string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Table: table, Type: typ, UserID: userID, Payload: b}, nil
}

type Broker interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns the user's event channel and a func that releases it.
	Subscribe(userID string) (<-chan Event, func())
}

const subscriberBuffer = 16

// MemoryBroker delivers events inside one process. Slow subscribers lose events rather
// than blocking publishers.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[chan Event]struct{})}
}

func (b *MemoryBroker) Publish(ctx context.Context, ev Event) error {
	b.deliver(ev)
	return nil
}

func (b *MemoryBroker) deliver(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *MemoryBroker) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan Event]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[userID], ch)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of open streams for a user.
func (b *MemoryBroker) Subscribers(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}
