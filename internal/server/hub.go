package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Client is one connected browser tab.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *DevServer
}

func (s *DevServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// origin was checked above
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.writePump()
	client.readPump()
}

// checkOrigin accepts same-host pages and loopback origins only.
func (s *DevServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients send no origin
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}
	if originURL.Host == r.Host {
		return true
	}
	switch originURL.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func (s *DevServer) runHub() {
	clients := make(map[*Client]bool)
	defer func() {
		for c := range clients {
			close(c.send)
		}
	}()

	for {
		select {
		case <-s.done:
			return

		case client := <-s.register:
			clients[client] = true
			s.logger.Debug(context.Background(), "client connected", "clients", len(clients))

		case client := <-s.unregister:
			if clients[client] {
				delete(clients, client)
				close(client.send)
				s.logger.Debug(context.Background(), "client disconnected", "clients", len(clients))
			}

		case message := <-s.broadcast:
			for client := range clients {
				select {
				case client.send <- message:
				default:
					// slow consumer
					delete(clients, client)
					close(client.send)
				}
			}

		case reply := <-s.count:
			reply <- len(clients)
		}
	}
}

// Broadcast sends msg to every connected client.
func (s *DevServer) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(context.Background(), err, "encoding reload message")
		return
	}
	select {
	case s.broadcast <- data:
	case <-s.done:
	}
}

// Clients returns the number of connected clients.
func (s *DevServer) Clients() int {
	reply := make(chan int, 1)
	select {
	case s.count <- reply:
		return <-reply
	case <-s.done:
		return 0
	}
}

// readPump drains the connection until the peer goes away. Clients never
// send anything meaningful.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, _, err := c.conn.Read(c.server.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && status != -1 {
				c.server.logger.Debug(context.Background(), "websocket read ended", "status", status.String())
			}
			return
		}
	}
}

// writePump pumps messages to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
