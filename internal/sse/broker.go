// Package sse streams note, task and graph change events to browsers.
package sse

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/mindweave/internal/models"
)

const (
	defaultGraphThrottle = 2 * time.Second
	defaultKeepAlive     = 25 * time.Second
	clientBuffer         = 64
	queueSize            = 256
)

// graphUpdated tells clients to refetch the graph. Only note changes emit it
// because links and tags live in note content.
const graphUpdated = "graph.updated"

type change struct {
	entity string
	kind   models.ChangeKind
	data   map[string]string
}

func (c change) valid() bool {
	switch c.kind {
	case models.ChangeCreated, models.ChangeUpdated, models.ChangeDeleted:
		return true
	}
	return false
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithKeepAlive sets how often idle streams get a comment frame.
func WithKeepAlive(d time.Duration) BrokerOption {
	return func(b *Broker) {
		if d > 0 {
			b.keepAlive = d
		}
	}
}

// WithLogger sets the logger used for dropped frames.
func WithLogger(l *slog.Logger) BrokerOption {
	return func(b *Broker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock replaces time.Now for the graph throttle.
func WithClock(now func() time.Time) BrokerOption {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// Broker fans events out to subscribed streams. A single goroutine owns the
// client set, the sequence counter and the graph throttle.
type Broker struct {
	throttle  time.Duration
	keepAlive time.Duration
	now       func() time.Time
	logger    *slog.Logger

	join    chan chan []byte
	leave   chan chan []byte
	events  chan Event
	changes chan change
	count   chan chan int

	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// NewBroker starts a broker. graph.updated is sent at most once per
// graphThrottle; a non-positive value uses two seconds.
func NewBroker(graphThrottle time.Duration, opts ...BrokerOption) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = defaultGraphThrottle
	}
	b := &Broker{
		throttle:  graphThrottle,
		keepAlive: defaultKeepAlive,
		now:       time.Now,
		logger:    slog.Default(),
		join:      make(chan chan []byte),
		leave:     make(chan chan []byte),
		events:    make(chan Event, queueSize),
		changes:   make(chan change, queueSize),
		count:     make(chan chan int),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.done)

	clients := clientSet{}
	defer clients.closeAll()

	var (
		seq       uint64
		lastGraph time.Time
	)
	emit := func(ev Event) {
		seq++
		frame, err := encode(seq, ev)
		if err != nil {
			b.logger.Warn("sse: encode event", slog.String("type", ev.Type), slog.String("error", err.Error()))
			return
		}
		if n := clients.send(frame); n > 0 {
			b.logger.Debug("sse: slow clients skipped", slog.String("type", ev.Type), slog.Int("clients", n))
		}
	}

	for {
		select {
		case <-b.quit:
			return
		case ch := <-b.join:
			clients.add(ch)
		case ch := <-b.leave:
			clients.remove(ch)
		case resp := <-b.count:
			resp <- len(clients)
		case ev := <-b.events:
			emit(ev)
		case c := <-b.changes:
			if !c.valid() {
				continue
			}
			emit(Event{Type: c.entity + "." + string(c.kind), Data: c.data})
			if c.entity != "note" {
				continue
			}
			if now := b.now(); lastGraph.IsZero() || now.Sub(lastGraph) >= b.throttle {
				lastGraph = now
				emit(Event{Type: graphUpdated, Data: struct{}{}})
			}
		}
	}
}

// Close stops the broker and closes every subscriber channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a stream. The channel is closed on Unsubscribe or
// Close; after Close it is returned already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if !b.closed.Load() {
		select {
		case b.join <- ch:
			return ch
		case <-b.done:
		}
	}
	close(ch)
	return ch
}

// Unsubscribe drops a stream and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount reports the number of open streams.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
	case <-b.done:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.done:
		return 0
	}
}

// Publish broadcasts a raw event.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// PublishNoteEvent broadcasts note.<kind> and, throttled, graph.updated.
func (b *Broker) PublishNoteEvent(kind models.ChangeKind, id, title string) {
	b.submit(change{entity: "note", kind: kind, data: map[string]string{"id": id, "title": title}})
}

// PublishTaskEvent broadcasts task.<kind>.
func (b *Broker) PublishTaskEvent(kind models.ChangeKind, id string) {
	b.submit(change{entity: "task", kind: kind, data: map[string]string{"id": id}})
}

func (b *Broker) submit(c change) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changes <- c:
	case <-b.done:
	}
}

// ServeHTTP streams events until the client goes away or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.keepAlive)
	defer ticker.Stop()

	for {
		var frame []byte
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			frame = keepAlive
		case msg, open := <-ch:
			if !open {
				return
			}
			frame = msg
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		flusher.Flush()
	}
}
