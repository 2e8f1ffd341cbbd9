package server

import (
	"encoding/json"
	"net/http"

	"capture-tool/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Replay state
// -----------------------------------------------------------------------------

// scene is the latest message of everything still on the page, in the
// order a fresh page must receive it.
type scene struct {
	controls   []*models.MWireMessage
	containers []*models.MWireMessage
	constructs map[string]*models.MWireMessage
	data       map[string]*models.MWireMessage
}

func newScene() *scene {
	return &scene{
		constructs: make(map[string]*models.MWireMessage),
		data:       make(map[string]*models.MWireMessage),
	}
}

func (sc *scene) apply(msg *models.MWireMessage) {
	switch msg.Type {
	case models.WireControl:
		sc.controls = append(sc.controls, msg)
	case models.WireContainer:
		sc.containers = append(sc.containers, msg)
	case models.WireConstruct:
		sc.constructs[msg.ID] = msg
	case models.WireSetData:
		sc.data[msg.ID] = msg
	case models.WireRemove:
		kept := sc.containers[:0]
		for _, c := range sc.containers {
			if c.ID != msg.ID {
				kept = append(kept, c)
			}
		}
		sc.containers = kept
		delete(sc.constructs, msg.ID)
		delete(sc.data, msg.ID)
	}
}

func (sc *scene) replay() []*models.MWireMessage {
	out := make([]*models.MWireMessage, 0, len(sc.controls)+3*len(sc.containers))
	out = append(out, sc.controls...)
	out = append(out, sc.containers...)
	for _, c := range sc.containers {
		if m, ok := sc.constructs[c.ID]; ok {
			out = append(out, m)
		}
	}
	for _, c := range sc.containers {
		if m, ok := sc.data[c.ID]; ok {
			out = append(out, m)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *HTTPServer) handleWebsockets() {
	for {
		select {
		case p := <-s.register:
			s.pages[p] = struct{}{}
			s.conns.Add(1)

			s.stateMutex.RLock()
			pending := s.scene.replay()
			s.stateMutex.RUnlock()

			for _, msg := range pending {
				if !s.deliver(p, msg) {
					break
				}
			}

		case p := <-s.unregister:
			s.drop(p)

		case message := <-s.broadcast:
			s.stateMutex.Lock()
			s.scene.apply(message)
			s.stateMutex.Unlock()

			for p := range s.pages {
				s.deliver(p, message)
			}

		case <-s.done:
			for p := range s.pages {
				s.drop(p)
			}
			return
		}
	}
}

// deliver queues msg for p, disconnecting it when its backlog is full.
func (s *HTTPServer) deliver(p *page, msg *models.MWireMessage) bool {
	select {
	case p.updates <- msg:
		return true
	default:
		s.Logger.Warning("Page too slow, disconnecting")
		s.drop(p)
		return false
	}
}

func (s *HTTPServer) drop(p *page) {
	if _, ok := s.pages[p]; ok {
		delete(s.pages, p)
		close(p.updates)
		s.conns.Add(-1)
	}
}

// -----------------------------------------------------------------------------

// publish hands msg to the hub. Messages sent after Stop are discarded.
func (s *HTTPServer) publish(msg *models.MWireMessage) {
	select {
	case s.broadcast <- msg:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	p := newPage(s, conn)

	select {
	case s.register <- p:
	case <-s.done:
		conn.Close()
		return
	}

	go p.sendUpdates()
	go p.receiveCommands()
}

// -----------------------------------------------------------------------------
// Page Commands
// -----------------------------------------------------------------------------

func (s *HTTPServer) handlePageCommand(p *page, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse page command: %v, disconnecting page", err)
		p.conn.Close()
		return
	}

	switch cmd.Command {
	case "activate":
		if err := s.Activate(cmd.ID); err != nil {
			s.Logger.Warning("Activation of %q rejected: %v", cmd.ID, err)
		}
	default:
		s.Logger.Debug("Ignoring page command %q", cmd.Command)
	}
}
