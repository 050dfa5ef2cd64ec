package server

import (
	"context"
	"sync"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
)

const (
	realtimeEventHeartbeat = "heartbeat"
	realtimeEventReady     = "ready"
	defaultRealtimeBuffer  = 16
)

// RealtimeObserver receives dispatcher telemetry.
type RealtimeObserver interface {
	RecordEvent(eventType string)
	AddSubscribers(delta int)
}

var _ docs.EventPublisher = (*RealtimeDispatcher)(nil)

// RealtimeDispatcher fans committed document events out to per-document
// subscribers. Slow subscribers drop events rather than block publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
	observer    RealtimeObserver
}

type realtimeSubscriber struct {
	id     int64
	stream chan docs.Event
}

// NewRealtimeDispatcher constructs a dispatcher. observer may be nil.
func NewRealtimeDispatcher(observer RealtimeObserver) *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  defaultRealtimeBuffer,
		observer:    observer,
	}
}

// Subscribe registers interest in documentID until ctx ends or the returned
// cleanup runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, documentID string) (<-chan docs.Event, func()) {
	if documentID == "" {
		ch := make(chan docs.Event)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan docs.Event, d.bufferSize),
	}
	d.registerSubscriber(documentID, subscriber)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(documentID, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers event to every subscriber of its document without blocking.
func (d *RealtimeDispatcher) Publish(event docs.Event) {
	if event.DocumentID == "" || event.Type == "" {
		return
	}
	if d.observer != nil {
		d.observer.RecordEvent(string(event.Type))
	}
	d.mu.RLock()
	subscribers := d.subscribers[event.DocumentID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

// SubscriberCount reports the open subscriptions for documentID.
func (d *RealtimeDispatcher) SubscriberCount(documentID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[documentID])
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(documentID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	if _, ok := d.subscribers[documentID]; !ok {
		d.subscribers[documentID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[documentID][subscriber.id] = subscriber
	if d.observer != nil {
		d.observer.AddSubscribers(1)
	}
	d.mu.Unlock()
}

func (d *RealtimeDispatcher) unregisterSubscriber(documentID string, subscriberID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subscribers := d.subscribers[documentID]
	if subscribers == nil {
		return
	}
	if _, ok := subscribers[subscriberID]; ok {
		delete(subscribers, subscriberID)
		if d.observer != nil {
			d.observer.AddSubscribers(-1)
		}
	}
	if len(subscribers) == 0 {
		delete(d.subscribers, documentID)
	}
}
