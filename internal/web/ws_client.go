package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roasbeef/canvasrca/internal/navigation"
	"github.com/roasbeef/canvasrca/internal/notify"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Size of the client send buffer.
	sendBufferSize = 32
)

// errClientClosed is returned when rendering to a detached overlay.
var errClientClosed = errors.New("websocket client closed")

// WSClient is one overlay's WebSocket connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	log  *slog.Logger

	tab notify.TabID

	// ctx is cancelled when the client closes; the overlay runs under it.
	ctx    context.Context
	cancel context.CancelFunc

	// Buffered channel of outbound messages.
	send chan *WSMessage

	mu          sync.Mutex
	closed      bool
	pageURL     string
	stopOverlay context.CancelFunc
	navigation  *navigation.Watcher
}

// NewWSClient creates a client for the overlay of pageURL in tab.
func NewWSClient(hub *Hub, conn *websocket.Conn, tab notify.TabID,
	pageURL string) *WSClient {

	ctx, cancel := context.WithCancel(context.Background())

	return &WSClient{
		hub:     hub,
		conn:    conn,
		log:     hub.log.With("tab", int64(tab)),
		tab:     tab,
		pageURL: pageURL,
		ctx:     ctx,
		cancel:  cancel,
		send:    make(chan *WSMessage, sendBufferSize),
	}
}

// PageURL returns the page the client's overlay currently shows.
func (c *WSClient) PageURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pageURL
}

// swapOverlay records pageURL and the cancel func of its overlay, and
// returns the cancel func of the overlay it replaces.
func (c *WSClient) swapOverlay(pageURL string,
	cancel context.CancelFunc) context.CancelFunc {

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.stopOverlay
	c.pageURL = pageURL
	c.stopOverlay = cancel

	return prev
}

// watchNavigation installs the watcher fed by navigate messages.
func (c *WSClient) watchNavigation(w *navigation.Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.navigation = w
}

// observeNavigation reports that the page moved to pageURL.
func (c *WSClient) observeNavigation(pageURL string) {
	c.mu.Lock()
	w := c.navigation
	c.mu.Unlock()

	if w != nil {
		w.Observe(pageURL)
	}
}

// Tab returns the tab the client's overlay belongs to.
func (c *WSClient) Tab() notify.TabID {
	return c.tab
}

// Context is done once the client has closed.
func (c *WSClient) Context() context.Context {
	return c.ctx
}

// Send queues a message. It reports false if the client is closed or its
// buffer is full.
func (c *WSClient) Send(msg *WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true

	default:
		c.log.Warn("WebSocket send buffer full, dropping message",
			"type", msg.Type)
		return false
	}
}

// RenderSummary implements overlay.Renderer by forwarding the summary to
// the page.
func (c *WSClient) RenderSummary(summaryHTML string) error {
	if !c.Send(renderMessage(summaryHTML)) {
		return errClientClosed
	}

	return nil
}

// Close closes the client connection.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	if c.navigation != nil {
		c.navigation.Stop()
	}
	c.cancel()
	close(c.send)
	_ = c.conn.Close()
}

// readPump pumps messages from the WebSocket connection to the hub.
// It runs in a separate goroutine for each client.
func (c *WSClient) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {

				c.log.Debug("WebSocket read error", "error", err)
			}
			return
		}

		c.hub.handleIncomingMessage(c, messageType, data)
	}
}

// writePump pumps queued messages to the WebSocket connection.
// It runs in a separate goroutine for each client.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The client was closed.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				c.log.Warn("WebSocket marshal error", "error", err)
				continue
			}

			err = c.conn.WriteMessage(websocket.TextMessage, data)
			if err != nil {
				c.log.Debug("WebSocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}
