// websocket/constants.go
package websocket

import "time"

// Тайминги keepalive: ping уходит раньше, чем истекает срок ожидания pong
const (
	writeWait  = 10 * time.Second
	pongWait   = time.Minute
	pingPeriod = pongWait * 9 / 10
)

// Лимиты
const (
	maxMessageSize      = 4 << 10 // наблюдатели присылают только ping
	sendBufferSize      = 256
	broadcastBufferSize = 256
)
