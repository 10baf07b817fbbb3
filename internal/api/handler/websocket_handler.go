package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Cho phép kết nối từ mọi nguồn
	},
}

// wsFrame là khung gửi xuống client cho mọi sự kiện realtime.
type wsFrame struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// clientMessage là message client gửi lên để vào/ra room theo bãi.
type clientMessage struct {
	Type         string `json:"type"` // "join-parking-lot" hoặc "leave-parking-lot"
	ParkingLotID int    `json:"parkingLotId"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	mu   sync.Mutex
	lots map[int]bool // các room bãi đỗ client đã join
}

func (c *wsClient) joinLot(lotID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lots[lotID] = true
}

func (c *wsClient) leaveLot(lotID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lots, lotID)
}

func (c *wsClient) inLot(lotID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lots[lotID]
}

// WebSocketHub quản lý các kết nối dashboard và phát sự kiện theo room:
// mỗi bãi đỗ là một room, client join room nào thì chỉ nhận sự kiện
// vào/ra/rào chắn của bãi đó. Sự kiện telemetry toàn cục gửi cho tất cả.
// Implement service.EventBroadcaster.
type WebSocketHub struct {
	mutex      sync.RWMutex
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
}

func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			log.Printf("WebSocket client connected. Total: %d", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			log.Printf("WebSocket client disconnected. Total: %d", total)
		}
	}
}

func marshalFrame(event string, data interface{}) []byte {
	message, err := json.Marshal(wsFrame{Event: event, Data: data, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		log.Printf("WebSocketHub: lỗi marshal sự kiện '%s': %v", event, err)
		return nil
	}
	return message
}

func (h *WebSocketHub) deliver(client *wsClient, message []byte) {
	select {
	case client.send <- message:
	default:
		log.Println("WebSocketHub: send buffer đầy, bỏ qua message")
	}
}

// Broadcast gửi sự kiện cho mọi client đang kết nối.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	message := marshalFrame(event, data)
	if message == nil {
		return
	}
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.clients {
		h.deliver(client, message)
	}
}

// BroadcastToLot chỉ gửi cho client đã join room của bãi tương ứng.
func (h *WebSocketHub) BroadcastToLot(lotID int, event string, data interface{}) {
	message := marshalFrame(event, data)
	if message == nil {
		return
	}
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.clients {
		if client.inLot(lotID) {
			h.deliver(client, message)
		}
	}
}

type WebSocketHandler struct {
	hub *WebSocketHub
}

func NewWebSocketHandler(hub *WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
		lots: make(map[int]bool),
	}
	h.hub.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHandler) writePump(client *wsClient) {
	for message := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Error writing to WebSocket client: %v", err)
			break
		}
	}
	client.conn.Close()
}

func (h *WebSocketHandler) readPump(client *wsClient) {
	defer func() {
		h.hub.unregister <- client
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("WebSocket: message không parse được: %v", err)
			continue
		}
		switch msg.Type {
		case "join-parking-lot":
			client.joinLot(msg.ParkingLotID)
			log.Printf("WebSocket client joined room bãi %d", msg.ParkingLotID)
		case "leave-parking-lot":
			client.leaveLot(msg.ParkingLotID)
			log.Printf("WebSocket client left room bãi %d", msg.ParkingLotID)
		}
	}
}
