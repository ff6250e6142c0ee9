package gateway

import (
	"sync"

	"ecotrack/internal/auth"
)

// Feed fans identity changes out to subscribers. Deliveries are
// serialised and arrive in publish order. A subscriber's first delivery
// happens on another goroutine, never inside Subscribe, and not before
// the first Publish.
//
// Callbacks must not call Publish.
type Feed struct {
	deliver sync.Mutex // held while callbacks run

	mu      sync.Mutex
	subs    map[uint64]*subscriber
	nextID  uint64
	settled bool
	current *auth.Identity
}

type subscriber struct {
	fn     func(*auth.Identity)
	primed bool
	active bool
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[uint64]*subscriber)}
}

// Subscribe registers fn and returns an idempotent unsubscribe.
func (f *Feed) Subscribe(fn func(*auth.Identity)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	sub := &subscriber{fn: fn, active: true}
	f.subs[id] = sub
	settled := f.settled
	f.mu.Unlock()

	if settled {
		go f.prime(sub)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			sub.active = false
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish records identity as current and delivers it to every
// subscriber. The first Publish settles the feed.
func (f *Feed) Publish(identity *auth.Identity) {
	f.deliver.Lock()
	defer f.deliver.Unlock()

	f.mu.Lock()
	f.settled = true
	f.current = identity.Clone()
	subs := make([]*subscriber, 0, len(f.subs))
	for id := uint64(0); id < f.nextID; id++ {
		if sub, ok := f.subs[id]; ok {
			subs = append(subs, sub)
		}
	}
	f.mu.Unlock()

	for _, sub := range subs {
		if f.claim(sub, true) {
			sub.fn(identity.Clone())
		}
	}
}

// Current returns the last published identity and whether the feed has
// settled.
func (f *Feed) Current() (*auth.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current.Clone(), f.settled
}

func (f *Feed) prime(sub *subscriber) {
	f.deliver.Lock()
	defer f.deliver.Unlock()

	if !f.claim(sub, false) {
		return
	}
	f.mu.Lock()
	current := f.current.Clone()
	f.mu.Unlock()
	sub.fn(current)
}

// claim reports whether sub should receive a delivery now. A priming
// delivery is skipped once a publish has already reached sub.
func (f *Feed) claim(sub *subscriber, publish bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !sub.active || (!publish && sub.primed) {
		return false
	}
	sub.primed = true
	return true
}
