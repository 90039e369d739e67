// internal/events/broker.go - Change feed for live queries
package events

import (
	"context"
	"sync"
)

// Table identifies the record kind a change touched.
type Table string

const (
	TableActivities   Table = "activities"
	TableTasks        Table = "scheduled_tasks"
	TableSearchIndex  Table = "search_index"
	TableMemories     Table = "memories"
	TableHealthChecks Table = "health_checks"
)

// Change marks that rows in a table were written. Subscribers re-run their
// queries on receipt; the change carries no row payload.
type Change struct {
	Table Table `json:"table"`
	At    int64 `json:"at"`
}

// Broker fans table invalidations out to subscribers. Sends never block:
// a subscriber that falls behind misses intermediate changes, which is
// harmless because every change means "re-read".
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Table]map[chan Change]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[Table]map[chan Change]struct{}{},
	}
}

// Subscribe returns a channel receiving a Change whenever one of the given
// tables is written. The channel closes when ctx is cancelled.
func (b *Broker) Subscribe(ctx context.Context, tables ...Table) <-chan Change {
	ch := make(chan Change, 16)

	b.mu.Lock()
	for _, table := range tables {
		if b.subscribers[table] == nil {
			b.subscribers[table] = map[chan Change]struct{}{}
		}
		b.subscribers[table][ch] = struct{}{}
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for _, table := range tables {
			if b.subscribers[table] != nil {
				delete(b.subscribers[table], ch)
				if len(b.subscribers[table]) == 0 {
					delete(b.subscribers, table)
				}
			}
		}
		// Closed under the lock: Publish sends while holding the read
		// lock, so a send can never land on a closed channel.
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish notifies every subscriber registered for the change's table.
// Sends happen under the read lock; they cannot block because subscriber
// channels are buffered and the send is non-blocking.
func (b *Broker) Publish(change Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[change.Table] {
		select {
		case ch <- change:
		default:
		}
	}
}
