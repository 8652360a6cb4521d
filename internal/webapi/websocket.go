package webapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and streams every PhotoacousticResult
// published to the hub as a JSON text message, until the client disconnects.
func (s *Server) handleStream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("websocket upgrade failed", "error", err)
		}
		return err
	}

	ch := s.hub.Subscribe()
	go s.readPump(conn)
	s.writePump(conn, ch)
	return nil
}

// readPump only drains control frames (ping/pong, close); subscribers
// never send data back over this stream.
func (s *Server) readPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump owns the connection's write side: it forwards published
// results as they arrive and keeps the connection alive with periodic
// pings. It returns (and the caller's handler returns) once the client
// disconnects or a write fails, at which point the subscription is torn
// down and the connection closed.
func (s *Server) writePump(conn *websocket.Conn, ch chan resultEnvelope) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.hub.Unsubscribe(ch)
		conn.Close()
	}()

	for {
		select {
		case envelope, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(envelope)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
