// websocket/client.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// frame пишет один кадр с ограничением по времени записи
func (c *Client) frame(kind int, payload []byte) error {
	if err := c.Socket.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Socket.WriteMessage(kind, payload)
}

// keepAlive продлевает срок чтения на pongWait
func (c *Client) keepAlive(string) error {
	return c.Socket.SetReadDeadline(time.Now().Add(pongWait))
}

// listen читает входящие кадры до ошибки или закрытия соединения.
// Наблюдатели присылают только ping; ответ ставится в очередь writer.
func (c *Client) listen() {
	log := c.manager.logger.With("client_id", c.ID)
	defer func() {
		c.manager.remove(c)
		c.Socket.Close()
	}()

	c.Socket.SetReadLimit(maxMessageSize)
	c.keepAlive("")
	c.Socket.SetPongHandler(c.keepAlive)

	for {
		_, payload, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("Соединение наблюдателя прервано: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Debug("Пропущено нераспознанное сообщение: %v", err)
			continue
		}
		if msg.Type != MessagePing {
			continue
		}

		select {
		case c.pong <- struct{}{}:
		default:
		}
	}
}

// writer единственный, кто пишет в соединение: события, ответы pong и служебные ping
func (c *Client) writer() {
	keepalive := time.NewTicker(pingPeriod)
	defer func() {
		keepalive.Stop()
		c.Socket.Close()
	}()

	pong, _ := json.Marshal(Message{Type: MessagePong})

	for {
		var err error
		select {
		case event, open := <-c.Send:
			if !open {
				// Менеджер отключил клиента
				c.frame(websocket.CloseMessage, nil)
				return
			}
			err = c.frame(websocket.TextMessage, event)
		case <-c.pong:
			err = c.frame(websocket.TextMessage, pong)
		case <-keepalive.C:
			err = c.frame(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}
