package server

import (
	"time"

	"capture-tool/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Page Connection Limits
// -----------------------------------------------------------------------------

const (
	// a page that cannot take a chart update within this window is dropped
	updateWriteTimeout = 2 * time.Second
	// pages answer pings; silence past this closes the connection
	pageSilenceLimit = 60 * time.Second
	pingInterval     = (pageSilenceLimit * 9) / 10
	// activation commands are tiny; anything larger is not from our page
	maxCommandSize = 64 * 1024
	// scene replay plus live updates buffered per page
	pageBacklog = 256
)

// -----------------------------------------------------------------------------
// Page
// -----------------------------------------------------------------------------

// page is one browser tab showing the capture surface. Chart updates flow
// out through updates; activation commands flow back in.
type page struct {
	server  *HTTPServer
	conn    *websocket.Conn
	updates chan *models.MWireMessage
}

func newPage(server *HTTPServer, conn *websocket.Conn) *page {
	return &page{
		server:  server,
		conn:    conn,
		updates: make(chan *models.MWireMessage, pageBacklog),
	}
}

// -----------------------------------------------------------------------------

// receiveCommands reads activation commands until the page goes away, then
// detaches it from the hub.
func (p *page) receiveCommands() {
	defer p.detach()

	p.conn.SetReadLimit(maxCommandSize)
	p.conn.SetReadDeadline(time.Now().Add(pageSilenceLimit))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pageSilenceLimit))
	})

	for {
		_, command, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.server.Logger.Info("Page connection lost: %v", err)
			}
			return
		}
		p.server.handlePageCommand(p, command)
	}
}

func (p *page) detach() {
	select {
	case p.server.unregister <- p:
	case <-p.server.done:
	}
	p.conn.Close()
	p.server.Logger.Info("Page disconnected")
}

// -----------------------------------------------------------------------------

// sendUpdates writes chart updates to the page and keeps it alive with
// pings. It returns once the hub closes updates or a write fails.
func (p *page) sendUpdates() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case update, ok := <-p.updates:
			p.conn.SetWriteDeadline(time.Now().Add(updateWriteTimeout))
			if !ok {
				// dropped by the hub
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteJSON(update); err != nil {
				p.server.Logger.Info("Failed to send %s for %s: %v", update.Type, update.ID, err)
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(updateWriteTimeout))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
