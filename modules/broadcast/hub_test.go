package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for _, f := range c.frames {
		var frame Frame
		if err := json.Unmarshal(f, &frame); err == nil {
			names = append(names, frame.Event)
		}
	}
	return names
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})
	return hub, cancel
}

// flush waits until every queued delivery has been written.
func flush(t *testing.T, hub *Hub) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(hub.deliver) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("hub did not drain deliveries")
		}
		time.Sleep(time.Millisecond)
	}
	// A register round trip orders after the last dequeued delivery.
	hub.Register(&Client{ID: "__flush", Conn: &fakeConn{}})
	hub.Unregister("__flush")
}

func TestHub_DeliverToRecipients(t *testing.T) {
	hub, _ := startHub(t)
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register(&Client{ID: "a", Conn: a})
	hub.Register(&Client{ID: "b", Conn: b})
	hub.Register(&Client{ID: "c", Conn: c})

	if err := hub.Deliver([]string{"a", "b"}, "receive_message", json.RawMessage(`{"id":"m1"}`)); err != nil {
		t.Fatalf("Deliver() unexpected error: %v", err)
	}
	if err := hub.Deliver(nil, "user_online", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Deliver() unexpected error: %v", err)
	}
	if err := hub.Deliver([]string{}, "nobody", nil); err != nil {
		t.Fatalf("Deliver() unexpected error: %v", err)
	}
	flush(t, hub)

	tests := []struct {
		name string
		conn *fakeConn
		want []string
	}{
		{"a", a, []string{"receive_message", "user_online"}},
		{"b", b, []string{"receive_message", "user_online"}},
		{"c", c, []string{"user_online"}},
	}
	for _, tt := range tests {
		got := tt.conn.events()
		if len(got) != len(tt.want) {
			t.Errorf("%s got %v, want %v", tt.name, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s got %v, want %v", tt.name, got, tt.want)
			}
		}
	}
}

func TestHub_FrameEnvelope(t *testing.T) {
	hub, _ := startHub(t)
	conn := &fakeConn{}
	hub.Register(&Client{ID: "a", Conn: conn})

	if err := hub.SendTo("a", "error", map[string]string{"code": "rate_limited"}); err != nil {
		t.Fatalf("SendTo() unexpected error: %v", err)
	}
	flush(t, hub)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(conn.frames))
	}
	var frame struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	if err := json.Unmarshal(conn.frames[0], &frame); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	if frame.Event != "error" || frame.Data["code"] != "rate_limited" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestHub_UnknownAndFailingClients(t *testing.T) {
	hub, _ := startHub(t)
	broken := &fakeConn{fail: true}
	hub.Register(&Client{ID: "broken", Conn: broken})

	_ = hub.Deliver([]string{"broken", "ghost"}, "typing_users", json.RawMessage(`{}`))
	flush(t, hub)

	sent, dropped := hub.Stats()
	if sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
}

func TestHub_UnregisterAndShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(&Client{ID: "a", Conn: a})
	hub.Unregister("a")
	// The loop only accepts this once the unregister has been applied.
	hub.Register(&Client{ID: "b", Conn: b})

	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}

	cancel()
	hub.Wait()

	if !b.closed {
		t.Error("remaining client should be closed on shutdown")
	}
	if a.closed {
		t.Error("unregistered client should not be closed by the hub")
	}

	// Calls after shutdown must not block.
	hub.Register(&Client{ID: "late", Conn: &fakeConn{}})
	hub.Unregister("late")
	_ = hub.Deliver(nil, "x", nil)
}
