// websocket/manager.go
package websocket

import (
	"context"
	"encoding/json"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/metrics"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// Создание нового менеджера WebSocket-соединений
func NewManager(logger *utils.ETLLogger) *Manager {
	return &Manager{
		logger:     logger,
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run обслуживает подключения до отмены ctx
func (manager *Manager) Run(ctx context.Context) {
	defer close(manager.done)

	for {
		select {
		case <-ctx.Done():
			for id, client := range manager.clients {
				delete(manager.clients, id)
				close(client.Send)
			}
			manager.setCount()
			manager.logger.Info("Менеджер WebSocket остановлен")
			return

		case client := <-manager.register:
			manager.clients[client.ID] = client
			manager.setCount()
			manager.logger.With("client_id", client.ID).Debug("Наблюдатель подключился")

		case client := <-manager.unregister:
			if _, ok := manager.clients[client.ID]; ok {
				delete(manager.clients, client.ID)
				close(client.Send)
				manager.setCount()
				manager.logger.With("client_id", client.ID).Debug("Наблюдатель отключился")
			}

		case message := <-manager.broadcast:
			// Рассылаем сообщение всем подключенным клиентам
			manager.fanOut(message)
		}
	}
}

// fanOut отправляет сообщение всем клиентам; переполненный клиент отключается
func (manager *Manager) fanOut(message []byte) {
	for id, client := range manager.clients {
		select {
		case client.Send <- message:
		default:
			close(client.Send)
			delete(manager.clients, id)
			manager.logger.With("client_id", id).Warn("Очередь клиента переполнена, соединение закрыто")
		}
	}
	manager.setCount()
}

func (manager *Manager) setCount() {
	manager.count.Store(int64(len(manager.clients)))
	metrics.WebsocketClients.Set(float64(len(manager.clients)))
}

// ClientCount количество подключенных наблюдателей
func (manager *Manager) ClientCount() int {
	return int(manager.count.Load())
}

// PublishProgress рассылает событие хода ETL; не блокирует запуск
func (manager *Manager) PublishProgress(event models.ProgressEvent) {
	data, err := json.Marshal(Message{Type: MessageProgress, Event: &event})
	if err != nil {
		manager.logger.Error("Ошибка кодирования события: %v", err)
		return
	}

	select {
	case manager.broadcast <- data:
	case <-manager.done:
	default:
		manager.logger.With("phase", event.Phase).Warn("Очередь рассылки переполнена, событие пропущено")
	}
}

func (manager *Manager) add(client *Client) bool {
	select {
	case manager.register <- client:
		return true
	case <-manager.done:
		return false
	}
}

func (manager *Manager) remove(client *Client) {
	select {
	case manager.unregister <- client:
	case <-manager.done:
	}
}
