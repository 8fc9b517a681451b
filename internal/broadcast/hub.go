// Package broadcast fans session events out to every subscriber of a session's channel.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-engine/internal/metrics"
)

const (
	defaultBuffer      = 16
	defaultSinkTimeout = 5 * time.Second
	defaultSinkPool    = 256
)

// Role distinguishes ordinary participants from host observers.
type Role int

const (
	RoleParticipant Role = iota
	RoleHost
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "participant"
}

// SubscriberID identifies one attached endpoint.
type SubscriberID string

// Sink receives a copy of every published event, e.g. to mirror them onto Redis.
type Sink interface {
	Publish(ctx context.Context, code string, e Event) error
}

// Subscription is one endpoint attached to a session channel.
// The caller must invoke Close to avoid leaks.
type Subscription struct {
	ID   SubscriberID
	Code string
	Role Role

	ch  chan Event
	hub *Hub
}

// C returns the delivery channel. It is closed when the subscription is closed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close detaches the subscription from its channel.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

// Hub is an in-memory publish/subscribe registry keyed by session code.
type Hub struct {
	buffer      int
	sinkTimeout time.Duration
	log         *slog.Logger

	mu       sync.RWMutex
	channels map[string]map[SubscriberID]*Subscription

	sinks []Sink
	pool  chan struct{}
	wg    sync.WaitGroup
}

type Option func(*Hub)

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithSink mirrors every event to s asynchronously.
func WithSink(s Sink) Option {
	return func(h *Hub) {
		h.sinks = append(h.sinks, s)
	}
}

func WithSinkTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.sinkTimeout = d
		}
	}
}

// WithSinkPool bounds the number of sink deliveries in flight.
func WithSinkPool(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.pool = make(chan struct{}, n)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		h.log = l
	}
}

// NewHub creates a hub. Caller should call Stop to wait for in-flight sink deliveries.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		buffer:      defaultBuffer,
		sinkTimeout: defaultSinkTimeout,
		log:         slog.Default(),
		channels:    make(map[string]map[SubscriberID]*Subscription),
		pool:        make(chan struct{}, defaultSinkPool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe adds an endpoint to the channel of code.
func (h *Hub) Subscribe(code string, role Role) *Subscription {
	return h.subscribe(code, role, h.buffer, nil)
}

// AttachHost adds a host endpoint and queues a PlayerJoined burst for the
// current roster, so a host attaching late still sees every player.
func (h *Hub) AttachHost(code string, roster []Event) *Subscription {
	return h.subscribe(code, RoleHost, h.buffer+len(roster), roster)
}

func (h *Hub) subscribe(code string, role Role, buffer int, replay []Event) *Subscription {
	sub := &Subscription{
		ID:   SubscriberID(uuid.NewString()),
		Code: code,
		Role: role,
		ch:   make(chan Event, buffer),
		hub:  h,
	}
	// Replay is queued before the subscription becomes visible to publishers.
	for _, e := range replay {
		sub.ch <- e
	}

	h.mu.Lock()
	members, ok := h.channels[code]
	if !ok {
		members = make(map[SubscriberID]*Subscription)
		h.channels[code] = members
	}
	members[sub.ID] = sub
	h.mu.Unlock()

	metrics.ChannelSubscribers.WithLabelValues(role.String()).Inc()
	return sub
}

// Unsubscribe removes sub from its channel and closes its delivery channel.
// Calling it more than once is safe.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.channels[sub.Code]
	if !ok {
		return
	}
	if _, ok := members[sub.ID]; !ok {
		return
	}
	delete(members, sub.ID)
	if len(members) == 0 {
		delete(h.channels, sub.Code)
	}
	close(sub.ch)
	metrics.ChannelSubscribers.WithLabelValues(sub.Role.String()).Dec()
}

// Members returns the number of endpoints attached to code.
func (h *Hub) Members(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[code])
}

// Publish delivers e to every member of the channel except the excluded ones and
// returns how many members received it. It never blocks on a slow member: when a
// member's queue is full its oldest pending event is dropped.
func (h *Hub) Publish(ctx context.Context, code string, e Event, exclude ...SubscriberID) int {
	delivered := 0

	h.mu.RLock()
	for id, sub := range h.channels[code] {
		if excluded(id, exclude) {
			continue
		}
		if h.deliver(sub, e) {
			delivered++
		}
	}
	h.mu.RUnlock()

	metrics.EventsDelivered.WithLabelValues(e.Name).Add(float64(delivered))

	for _, s := range h.sinks {
		h.dispatch(ctx, s, code, e)
	}
	return delivered
}

func (h *Hub) deliver(sub *Subscription, e Event) bool {
	select {
	case sub.ch <- e:
		return true
	default:
	}

	// Drop the stale head so the newest state still reaches the member.
	select {
	case stale := <-sub.ch:
		metrics.EventsDropped.WithLabelValues(stale.Name).Inc()
		h.log.Warn("broadcast: dropped event for slow subscriber",
			"code", sub.Code, "subscriber", sub.ID, "event", stale.Name)
	default:
	}

	select {
	case sub.ch <- e:
		return true
	default:
		metrics.EventsDropped.WithLabelValues(e.Name).Inc()
		return false
	}
}

func (h *Hub) dispatch(ctx context.Context, s Sink, code string, e Event) {
	// Publishers run under the session lock, so a full pool drops the delivery instead of waiting.
	select {
	case h.pool <- struct{}{}:
	default:
		metrics.SinkFailures.Inc()
		h.log.WarnContext(ctx, "broadcast: sink pool full, event dropped",
			"code", code, "event", e.Name,
		)
		return
	}
	h.wg.Add(1)

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.sinkTimeout)
		defer func() {
			if r := recover(); r != nil {
				metrics.SinkFailures.Inc()
				h.log.ErrorContext(ctx, "broadcast: sink panic",
					"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
				)
			}
			cancel()
			<-h.pool
			h.wg.Done()
		}()

		if err := s.Publish(ctx, code, e); err != nil {
			metrics.SinkFailures.Inc()
			h.log.ErrorContext(ctx, "broadcast: sink publish failed",
				"code", code, "event", e.Name, "error", err,
			)
		}
	}()
}

// Stop waits for all in-flight sink deliveries to finish.
func (h *Hub) Stop() {
	h.wg.Wait()
}

func excluded(id SubscriberID, exclude []SubscriberID) bool {
	for _, x := range exclude {
		if x == id {
			return true
		}
	}
	return false
}
