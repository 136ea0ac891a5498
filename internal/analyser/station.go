package analyser

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
)

// ErrNoCenter is returned by ZeroAtCenter when there is no center estimate
// to copy into the zero reference.
var ErrNoCenter = errors.New("no center estimate available")

// EventKind distinguishes Station events.
type EventKind string

const (
	EventProfile EventKind = "profile"
	EventZero    EventKind = "zero"
)

// Event is a notification fanned out to Station subscribers. Exactly one of
// Profile or Zero is set, matching Kind.
type Event struct {
	Kind    EventKind      `json:"kind"`
	Profile *ProfileChange `json:"profile,omitempty"`
	Zero    *float64       `json:"zero,omitempty"`
}

// Station serialises access to a Pipeline so that a sensor reader and
// request handlers can share it, and fans pipeline notifications out to
// channel subscribers.
type Station struct {
	mu sync.Mutex
	p  *Pipeline

	subscriberMu sync.Mutex
	subscribers  map[string]*subscription
	closed       bool
}

// maxPendingProfiles bounds the profile events queued for one subscriber.
// Zero events are queued without limit.
const maxPendingProfiles = 16

// NewStation wraps p. The station registers itself as an observer of p, so
// p should not be driven directly once wrapped.
func NewStation(p *Pipeline) *Station {
	s := &Station{
		p:           p,
		subscribers: make(map[string]*subscription),
	}
	p.OnProfileChanged(func(c ProfileChange) {
		s.broadcast(Event{Kind: EventProfile, Profile: &c})
	})
	p.OnZeroChanged(func(v float64) {
		s.broadcast(Event{Kind: EventZero, Zero: &v})
	})
	return s
}

// PushProfile runs Pipeline.PushProfile under the station lock.
func (s *Station) PushProfile(raw []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.PushProfile(raw)
}

// SetZero runs Pipeline.SetZero under the station lock.
func (s *Station) SetZero(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.SetZero(v)
}

// ZeroAtCenter copies the current center estimate into the zero reference
// and returns it.
func (s *Station) ZeroAtCenter() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.p.Center()
	if !ok {
		return 0, ErrNoCenter
	}
	s.p.SetZero(c)
	return c, nil
}

// SetSmoothingRadius runs Pipeline.SetSmoothingRadius under the station lock.
func (s *Station) SetSmoothingRadius(r int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.SetSmoothingRadius(r)
}

// SmoothingRadius returns the radius for the next profile.
func (s *Station) SmoothingRadius() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.SmoothingRadius()
}

// RadiusLimit returns the largest accepted smoothing radius.
func (s *Station) RadiusLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.RadiusLimit()
}

// Snapshot copies the pipeline state.
func (s *Station) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Snapshot()
}

// DisplayCoordinates maps center and zero onto a display of the given height.
func (s *Station) DisplayCoordinates(height float64) DisplayCoordinates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.DisplayCoordinates(height)
}

// Subscribe returns a channel receiving every subsequent Event and an ID
// for Unsubscribe. A subscriber that falls behind loses its oldest queued
// profile events; zero events are always delivered, in order.
func (s *Station) Subscribe() (string, <-chan Event) {
	id := randomID()
	sub := newSubscription()
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closed {
		close(sub.out)
		return id, sub.out
	}
	s.subscribers[id] = sub
	go sub.run()
	return id, sub.out
}

// Unsubscribe stops delivery and closes the subscriber channel.
func (s *Station) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if sub, ok := s.subscribers[id]; ok {
		close(sub.quit)
		delete(s.subscribers, id)
	}
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel.
func (s *Station) Close() {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.closed = true
	for id, sub := range s.subscribers {
		close(sub.quit)
		delete(s.subscribers, id)
	}
}

func (s *Station) broadcast(ev Event) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, sub := range s.subscribers {
		sub.push(ev.clone())
	}
}

// clone gives each subscriber its own payload.
func (ev Event) clone() Event {
	if ev.Profile != nil {
		c := *ev.Profile
		c.Normalized = cloneFloats(c.Normalized)
		if c.Center != nil {
			v := *c.Center
			c.Center = &v
		}
		ev.Profile = &c
	}
	if ev.Zero != nil {
		v := *ev.Zero
		ev.Zero = &v
	}
	return ev
}

// subscription queues events for one subscriber and feeds them to out from
// its own goroutine, so a slow reader never blocks the pipeline.
type subscription struct {
	out  chan Event
	wake chan struct{}
	quit chan struct{}

	mu       sync.Mutex
	queue    []Event
	profiles int
}

func newSubscription() *subscription {
	return &subscription{
		out:  make(chan Event),
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

func (sub *subscription) push(ev Event) {
	sub.mu.Lock()
	if ev.Kind == EventProfile {
		if sub.profiles >= maxPendingProfiles {
			sub.dropOldestProfile()
		}
		sub.profiles++
	}
	sub.queue = append(sub.queue, ev)
	sub.mu.Unlock()

	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

// dropOldestProfile must be called with mu held.
func (sub *subscription) dropOldestProfile() {
	for i, ev := range sub.queue {
		if ev.Kind == EventProfile {
			sub.queue = append(sub.queue[:i], sub.queue[i+1:]...)
			sub.profiles--
			return
		}
	}
}

func (sub *subscription) pop() (Event, bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.queue) == 0 {
		return Event{}, false
	}
	ev := sub.queue[0]
	sub.queue[0] = Event{}
	sub.queue = sub.queue[1:]
	if ev.Kind == EventProfile {
		sub.profiles--
	}
	return ev, true
}

func (sub *subscription) run() {
	defer close(sub.out)
	for {
		select {
		case <-sub.quit:
			return
		default:
		}

		ev, ok := sub.pop()
		if !ok {
			select {
			case <-sub.wake:
				continue
			case <-sub.quit:
				return
			}
		}

		select {
		case sub.out <- ev:
		case <-sub.quit:
			return
		}
	}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
