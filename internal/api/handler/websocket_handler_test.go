package handler

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestClient(lots ...int) *wsClient {
	c := &wsClient{
		send: make(chan []byte, 8),
		lots: make(map[int]bool),
	}
	for _, id := range lots {
		c.lots[id] = true
	}
	return c
}

func recvFrame(t *testing.T, c *wsClient) *wsFrame {
	t.Helper()
	select {
	case raw := <-c.send:
		var frame wsFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("frame không parse được: %v", err)
		}
		return &frame
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()

	a := newTestClient()
	b := newTestClient(2)
	hub.register <- a
	hub.register <- b
	waitForClients(t, hub, 2)

	hub.Broadcast("rfid-data-received", map[string]int{"readerId": 1})

	for _, c := range []*wsClient{a, b} {
		frame := recvFrame(t, c)
		if frame == nil {
			t.Fatal("client không nhận được sự kiện broadcast")
		}
		if frame.Event != "rfid-data-received" {
			t.Errorf("event = %q, muốn rfid-data-received", frame.Event)
		}
		if frame.Timestamp == 0 {
			t.Error("thiếu timestamp trong frame")
		}
	}
}

func TestBroadcastToLotScopedToRoom(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()

	lot1 := newTestClient(1)
	lot2 := newTestClient(2)
	both := newTestClient(1, 2)
	hub.register <- lot1
	hub.register <- lot2
	hub.register <- both
	waitForClients(t, hub, 3)

	hub.BroadcastToLot(1, "parking-entry-completed", map[string]string{"sessionId": "PS000000000001"})

	if frame := recvFrame(t, lot1); frame == nil || frame.Event != "parking-entry-completed" {
		t.Fatalf("client trong room 1 phải nhận sự kiện, got %+v", frame)
	}
	if frame := recvFrame(t, both); frame == nil || frame.Event != "parking-entry-completed" {
		t.Fatalf("client trong cả hai room phải nhận sự kiện, got %+v", frame)
	}
	if frame := recvFrame(t, lot2); frame != nil {
		t.Errorf("client room 2 không được nhận sự kiện của bãi 1, got %+v", frame)
	}
}

func TestJoinLeaveChangesRoomMembership(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()

	c := newTestClient()
	hub.register <- c
	waitForClients(t, hub, 1)

	c.joinLot(3)
	hub.BroadcastToLot(3, "barrier-updated", map[string]string{"barrierId": "barrier-1"})
	if frame := recvFrame(t, c); frame == nil {
		t.Fatal("client phải nhận sự kiện sau khi join room")
	}

	c.leaveLot(3)
	hub.BroadcastToLot(3, "barrier-updated", map[string]string{"barrierId": "barrier-1"})
	if frame := recvFrame(t, c); frame != nil {
		t.Errorf("client đã leave room không được nhận sự kiện, got %+v", frame)
	}
}

func waitForClients(t *testing.T, hub *WebSocketHub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mutex.RLock()
		n := len(hub.clients)
		hub.mutex.RUnlock()
		if n == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub không đạt %d client trong thời gian chờ", want)
}
