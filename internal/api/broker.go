package api

import (
    "sync"
)

// Event is a driver telemetry event fanned out to stream subscribers.
type Event struct {
    Type string
    Data map[string]any
}

// Broker is the in-process fanout used when no REDIS_URL is set.
type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan Event]struct{} // driverId -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(driverID string) chan Event {
    ch := make(chan Event, 8)
    b.mu.Lock()
    if b.subs[driverID] == nil { b.subs[driverID] = map[chan Event]struct{}{} }
    b.subs[driverID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(driverID string, ch chan Event) {
    b.mu.Lock()
    if m := b.subs[driverID]; m != nil {
        delete(m, ch)
        if len(m) == 0 { delete(b.subs, driverID) }
    }
    b.mu.Unlock()
    close(ch)
}

// Publish drops events for slow subscribers rather than blocking the
// ingest path.
func (b *Broker) Publish(driverID string, evt Event) {
    b.mu.Lock()
    m := b.subs[driverID]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}
