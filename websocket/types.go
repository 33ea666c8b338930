// websocket/types.go
package websocket

import (
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// Типы сообщений
const (
	MessageProgress = "progress"
	MessagePing     = "ping"
	MessagePong     = "pong"
)

// Структура сообщения для обмена через WebSocket
type Message struct {
	Type  string                `json:"type"`
	Event *models.ProgressEvent `json:"event,omitempty"`
}

// Клиент WebSocket, наблюдающий за ходом ETL
type Client struct {
	ID      string
	Socket  *websocket.Conn
	Send    chan []byte
	pong    chan struct{}
	manager *Manager
}

// Менеджер WebSocket-соединений
type Manager struct {
	logger     *utils.ETLLogger
	clients    map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64
}

// Конфигурация WebSocket-соединения
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
