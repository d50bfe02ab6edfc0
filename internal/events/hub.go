// Package events 提供支付单事件的 WebSocket 广播中心。
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/autopay-next/internal/logger"
	"github.com/autopay-next/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 推送面向后台监控页面，跨域校验交给网关层
	CheckOrigin: func(r *http.Request) bool { return true },
}

// OrderEvent 推送给订阅端的支付单事件
type OrderEvent struct {
	Event     string               `json:"event"`
	Timestamp int64                `json:"timestamp"`
	Order     *models.PaymentOrder `json:"order"`
}

// Hub 支付单事件广播中心
type Hub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub 创建广播中心
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run 广播主循环，需在独立 goroutine 中运行
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.clients[conn] = true
		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
		case message := <-h.broadcast:
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					delete(h.clients, conn)
					conn.Close()
				}
			}
		case <-h.done:
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			return
		}
	}
}

// Stop 停止广播并断开所有连接
func (h *Hub) Stop() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// PublishOrderEvent 广播支付单事件，无人订阅时静默丢弃
func (h *Hub) PublishOrderEvent(event string, order *models.PaymentOrder) {
	payload, err := json.Marshal(OrderEvent{
		Event:     event,
		Timestamp: time.Now().Unix(),
		Order:     order,
	})
	if err != nil {
		logger.Warnw("order_event_marshal_failed", "event", event, "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		// 广播缓冲已满时丢弃事件，推送属尽力而为
		logger.Warnw("order_event_dropped", "event", event)
	}
}

// HandleWS 升级 WebSocket 连接并注册到广播中心
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnw("ws_upgrade_failed", "error", err)
		return
	}
	h.register <- conn

	// 读循环只负责感知断连，订阅端不需要上行数据
	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
