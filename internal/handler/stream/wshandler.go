package stream

import (
	"net/http"
	"sync"

	"coinpulse/internal/model"
	"coinpulse/pkg/logger"

	"github.com/gin-gonic/gin"
	gojson "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// 告警实时推送：客户端通过websocket订阅感兴趣的币种
// 不订阅任何币种时收全量告警

// 客户端请求的消息格式
type subscribeMessage struct {
	Action  string   `json:"action"`  // subscribe | unsubscribe
	Symbols []string `json:"symbols"` // ["BTCUSDT", "ETHUSDT"]
}

type ClientConn struct {
	Conn    *websocket.Conn
	Send    chan []byte // 异步发送通道
	Symbols map[string]struct{}
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[*ClientConn]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*ClientConn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // 允许跨域
		},
	}
}

// Broadcast 把告警推给所有匹配的连接
// 队列满的连接直接丢消息，不能阻塞扫描链路
func (h *Hub) Broadcast(event *model.AlertEvent) {
	data, err := gojson.Marshal(event)
	if err != nil {
		logger.Error("ws: marshal alert failed", logger.Pair("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(event.Symbol) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			// 队列满就丢掉
		}
	}
}

// ServeWS 接入一个websocket客户端
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws: upgrade failed", logger.Pair("error", err))
		return
	}
	client := &ClientConn{
		Conn:    conn,
		Send:    make(chan []byte, 100),
		Symbols: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		close(client.Send)
		conn.Close()
	}()

	// 不断从 Send channel 取消息写入websocket
	go client.writePump()
	// 阻塞读客户端消息直到断开
	client.readPump(h)
}

// ClientCount 当前在线连接数，给探活接口用
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// wants 空订阅表示接收全部
func (c *ClientConn) wants(symbol string) bool {
	if len(c.Symbols) == 0 {
		return true
	}
	_, ok := c.Symbols[symbol]
	return ok
}

func (c *ClientConn) writePump() {
	defer c.Conn.Close()
	for msg := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug("ws: write failed", logger.Pair("error", err))
			break
		}
	}
}

// readPump 读取客户端的订阅指令
func (c *ClientConn) readPump(h *Hub) {
	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			logger.Debug("ws: client disconnected", logger.Pair("error", err))
			break
		}

		var clientMsg subscribeMessage
		if err := gojson.Unmarshal(msg, &clientMsg); err != nil {
			logger.Debug("ws: invalid message", logger.Pair("error", err))
			continue
		}

		h.mu.Lock()
		switch clientMsg.Action {
		case "subscribe":
			for _, sym := range clientMsg.Symbols {
				c.Symbols[sym] = struct{}{}
			}
		case "unsubscribe":
			for _, sym := range clientMsg.Symbols {
				delete(c.Symbols, sym)
			}
		}
		h.mu.Unlock()
	}
}
