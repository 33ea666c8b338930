// websocket/connection_handler.go
package websocket

import (
	"net/http"

	"github.com/google/uuid"
)

// HandleConnections подключает наблюдателя к потоку событий ETL
func (manager *Manager) HandleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		manager.logger.Warn("Ошибка при установке WebSocket-соединения: %v", err)
		return
	}

	client := &Client{
		ID:      uuid.NewString(),
		Socket:  conn,
		Send:    make(chan []byte, sendBufferSize),
		pong:    make(chan struct{}, 1),
		manager: manager,
	}

	if !manager.add(client) {
		conn.Close()
		return
	}
	manager.logger.With("client_id", client.ID, "remote_addr", r.RemoteAddr).Info("Наблюдатель подключен")

	// Чтение и запись в отдельных горутинах
	go client.listen()
	go client.writer()
}
