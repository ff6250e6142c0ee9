package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecotrack/internal/auth"
)

type recorder struct {
	mu  sync.Mutex
	got []*auth.Identity
	ch  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 64)}
}

func (r *recorder) fn(identity *auth.Identity) {
	r.mu.Lock()
	r.got = append(r.got, identity)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) []*auth.Identity {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d", i+1)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*auth.Identity(nil), r.got...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestSubscribeBeforeSettleWaitsForPublish(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	rec := newRecorder()
	unsubscribe := f.Subscribe(rec.fn)
	defer unsubscribe()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, rec.count())

	_, settled := f.Current()
	assert.False(t, settled)

	f.Publish(&auth.Identity{ID: "u1"})
	got := rec.wait(t, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].ID)
}

func TestSubscribeAfterSettlePrimesAsynchronously(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	f.Publish(nil)

	rec := newRecorder()
	called := make(chan struct{})
	unsubscribe := f.Subscribe(func(identity *auth.Identity) {
		rec.fn(identity)
		close(called)
	})
	defer unsubscribe()

	got := rec.wait(t, 1)
	<-called
	require.Len(t, got, 1)
	assert.Nil(t, got[0])
}

func TestPublishOrder(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	rec := newRecorder()
	defer f.Subscribe(rec.fn)()

	ids := []string{"a", "b", "", "c"}
	for _, id := range ids {
		if id == "" {
			f.Publish(nil)
			continue
		}
		f.Publish(&auth.Identity{ID: id})
	}

	got := rec.wait(t, len(ids))
	require.Len(t, got, len(ids))
	for i, id := range ids {
		if id == "" {
			assert.Nil(t, got[i])
			continue
		}
		assert.Equal(t, id, got[i].ID)
	}
}

func TestPublishClonesIdentity(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	rec := newRecorder()
	defer f.Subscribe(rec.fn)()

	identity := &auth.Identity{ID: "u1", DisplayName: "before"}
	f.Publish(identity)
	identity.DisplayName = "after"

	got := rec.wait(t, 1)
	assert.Equal(t, "before", got[0].DisplayName)
	current, _ := f.Current()
	assert.Equal(t, "before", current.DisplayName)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	rec := newRecorder()
	unsubscribe := f.Subscribe(rec.fn)

	f.Publish(&auth.Identity{ID: "u1"})
	rec.wait(t, 1)

	unsubscribe()
	unsubscribe()
	f.Publish(nil)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestString(t *testing.T) {
	t.Parallel()

	p := String("Jane")
	require.NotNil(t, p)
	assert.Equal(t, "Jane", *p)
}
