package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Envelope
	fail   bool
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, v.(Envelope))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, e := range f.frames {
		out = append(out, e.Event)
	}
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func startHub(t *testing.T, bus Bus) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHub(logger.NewNoOpLogger(), bus)
	require.NoError(t, h.Start(ctx))
	return h
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	assert.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestHubFanOut(t *testing.T) {
	h := startHub(t, nil)

	alice, bob, admin := uuid.New(), uuid.New(), uuid.New()
	aliceConn1, aliceConn2, bobConn, adminConn := &fakeConn{}, &fakeConn{}, &fakeConn{}, &fakeConn{}

	a1 := NewClient(alice, "student", aliceConn1)
	h.Register(a1)
	h.Register(NewClient(alice, "student", aliceConn2))
	b := NewClient(bob, "teacher", bobConn)
	h.Register(b)
	h.Register(NewClient(admin, "admin", adminConn))

	h.JoinRoom(a1, "class-CS2024")
	h.JoinRoom(b, "class-CS2024")

	h.SendToUser(alice, "new-notification", map[string]string{"title": "hi"})
	eventually(t, func() bool { return len(aliceConn1.events()) == 1 && len(aliceConn2.events()) == 1 })
	assert.Empty(t, bobConn.events())

	h.SendToRole("teacher", "bulk-notification", nil)
	eventually(t, func() bool { return len(bobConn.events()) == 1 })
	assert.Equal(t, []string{"bulk-notification"}, bobConn.events())
	assert.Len(t, aliceConn1.events(), 1)

	h.SendToRoom("class-CS2024", "new-message", nil)
	eventually(t, func() bool { return len(bobConn.events()) == 2 && len(aliceConn1.events()) == 2 })
	assert.Len(t, aliceConn2.events(), 1, "only the joined connection is in the room")
	assert.Empty(t, adminConn.events())

	h.SendToRoomExcept("class-CS2024", bob, "user-typing", nil)
	eventually(t, func() bool { return len(aliceConn1.events()) == 3 })
	assert.Len(t, bobConn.events(), 2)

	h.Broadcast("maintenance", nil)
	eventually(t, func() bool { return len(adminConn.events()) == 1 })

	assert.ElementsMatch(t, []uuid.UUID{alice, bob, admin}, h.ConnectedUsers())
	require.Len(t, h.UsersByRole("student"), 1)
	assert.Equal(t, []uuid.UUID{alice}, h.UsersByRole("student"))
}

func TestHubDropsConnectionOnWriteFailure(t *testing.T) {
	h := startHub(t, nil)

	user := uuid.New()
	broken := &fakeConn{fail: true}
	h.Register(NewClient(user, "student", broken))
	eventually(t, func() bool { return h.IsOnline(user) })

	h.SendToUser(user, "ping", nil)
	eventually(t, func() bool { return !h.IsOnline(user) })
	assert.True(t, broken.isClosed())
}

func TestHubUnregisterLeavesRooms(t *testing.T) {
	h := startHub(t, nil)

	user := uuid.New()
	c := NewClient(user, "student", &fakeConn{})
	h.Register(c)
	h.JoinRoom(c, "direct_a_b")
	h.Unregister(c)

	eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.rooms) == 0 && len(h.users) == 0
	})
}

func TestHubJoinUserRoomCoversEveryConnection(t *testing.T) {
	h := startHub(t, nil)

	user := uuid.New()
	first, second := &fakeConn{}, &fakeConn{}
	h.Register(NewClient(user, "teacher", first))
	h.Register(NewClient(user, "teacher", second))
	eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.users[user]) == 2
	})

	h.JoinUserRoom(user, "class-ME2025")
	h.SendToRoom("class-ME2025", "new-message", nil)
	eventually(t, func() bool { return len(first.events()) == 1 && len(second.events()) == 1 })

	h.LeaveUserRoom(user, "class-ME2025")
	h.SendToRoom("class-ME2025", "new-message", nil)
	h.SendToUser(user, "ping", nil)
	eventually(t, func() bool { return len(first.events()) == 2 })
	assert.Equal(t, []string{"new-message", "ping"}, first.events())
}

func TestRedisBusDeliversAcrossHubs(t *testing.T) {
	mr := miniredis.RunT(t)
	newBus := func() *RedisBus {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return NewRedisBus(rdb, "", logger.NewNoOpLogger())
	}

	hubA := startHub(t, newBus())
	hubB := startHub(t, newBus())

	user := uuid.New()
	onA, onB := &fakeConn{}, &fakeConn{}
	hubA.Register(NewClient(user, "student", onA))
	hubB.Register(NewClient(user, "student", onB))

	hubA.SendToUser(user, "payment-updated", map[string]string{"status": "completed"})

	eventually(t, func() bool { return len(onA.events()) == 1 && len(onB.events()) == 1 })
	assert.Equal(t, []string{"payment-updated"}, onB.events())
}

func TestRedisBusSubscriptionEndsWithoutReader(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	bus := NewRedisBus(rdb, "", logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deliveries, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	const sent = 300
	for i := 0; i < sent; i++ {
		require.NoError(t, bus.Publish(context.Background(), Delivery{Target: "user", Key: uuid.NewString(), Envelope: Envelope{Event: "ping"}}))
	}
	eventually(t, func() bool { return len(deliveries) == cap(deliveries) })

	cancel()
	time.Sleep(50 * time.Millisecond)

	received := 0
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-deliveries:
			if !ok {
				assert.Equal(t, cap(deliveries), received, "buffered deliveries drain, then the channel closes")
				return
			}
			received++
		case <-timeout:
			t.Fatalf("subscription still open after cancel, %d deliveries read", received)
		}
	}
}
