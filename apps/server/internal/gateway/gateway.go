package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"darts-lite/apps/server/internal/codec"
	"darts-lite/apps/server/internal/lobby"
	"darts-lite/darts"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	commandTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// boards and scoreboards are served from other origins on the LAN
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Connection is one websocket client watching a board.
type Connection struct {
	ID      string
	BoardID string
	Conn    *websocket.Conn
	Send    chan []byte
	Gateway *Gateway

	hub    *lobby.Hub
	frames chan codec.Frame
	logger *zap.Logger
}

// clientMessage is a command frame from a client. start_game carries its
// settings in Game; every other type is a lobby command.
type clientMessage struct {
	lobby.Command
	Game *lobby.StartRequest `json:"game,omitempty"`
}

// Gateway manages WebSocket connections
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	nextConnID  uint64
	lobby       *lobby.Lobby
	logger      *zap.Logger
}

func New(lby *lobby.Lobby, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		connections: make(map[string]*Connection),
		lobby:       lby,
		logger:      logger.Named("gateway"),
	}
}

// Routes mounts GET /ws/{boardID}.
func (g *Gateway) Routes(r chi.Router) {
	r.Get("/ws/{boardID}", g.HandleWebSocket)
}

// HandleWebSocket upgrades the request and subscribes the client to the
// board. The board id comes from the route or the board_id query parameter.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	boardID := strings.TrimSpace(chi.URLParam(r, "boardID"))
	if boardID == "" {
		boardID = strings.TrimSpace(r.URL.Query().Get("board_id"))
	}
	if boardID == "" {
		http.Error(w, "missing board id", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	hub := g.lobby.Hub(boardID)
	g.mu.Lock()
	g.nextConnID++
	connID := fmt.Sprintf("conn_%d", g.nextConnID)
	c := &Connection{
		ID:      connID,
		BoardID: boardID,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Gateway: g,
		hub:     hub,
		frames:  hub.Subscribe(),
		logger:  g.logger.With(zap.String("conn_id", connID), zap.String("board_id", boardID)),
	}
	g.connections[connID] = c
	total := len(g.connections)
	g.mu.Unlock()

	c.logger.Info("client connected", zap.Int("total", total))

	// late joiners get the current state before any live frame
	if t := g.lobby.Get(boardID); t != nil {
		frame := codec.WrapEvent(boardID, t.GameID(), 0, darts.Event{Type: darts.EventGameState, Data: t.Snapshot()})
		if data, err := codec.EncodeFrame(frame); err == nil {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("initial snapshot failed", zap.Error(err))
			}
		}
	}

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read error", zap.Error(err))
			}
			break
		}
		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(fmt.Errorf("%w: malformed message", lobby.ErrUnknownCommand))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	c.logger.Debug("command received", zap.String("type", msg.Type))
	var err error
	if strings.EqualFold(strings.TrimSpace(msg.Type), "start_game") {
		req := lobby.StartRequest{}
		if msg.Game != nil {
			req = *msg.Game
		}
		_, _, err = c.Gateway.lobby.StartGame(ctx, c.BoardID, req)
	} else {
		_, err = c.Gateway.lobby.Execute(ctx, c.BoardID, msg.Command)
	}
	if err != nil {
		c.sendError(err)
	}
}

// sendError reports a failed command to this client only.
func (c *Connection) sendError(err error) {
	gameID := ""
	if t := c.Gateway.lobby.Get(c.BoardID); t != nil {
		gameID = t.GameID()
	}
	c.logger.Debug("command failed", zap.String("code", lobby.Code(err)), zap.Error(err))
	c.sendFrame(codec.WrapEvent(c.BoardID, gameID, 0, lobby.ErrorEvent(err)))
}

func (c *Connection) sendFrame(f codec.Frame) {
	data, err := codec.EncodeFrame(f)
	if err != nil {
		c.logger.Error("encode frame failed", zap.String("event", string(f.Event)), zap.Error(err))
		return
	}
	select {
	case c.Send <- data:
	default:
		c.logger.Warn("send buffer full, frame dropped", zap.String("event", string(f.Event)))
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case frame, ok := <-c.frames:
			if !ok {
				// unsubscribed by readPump
				return
			}
			data, err := codec.EncodeFrame(frame)
			if err != nil {
				c.logger.Error("encode frame failed", zap.Error(err))
				continue
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	c.hub.Unsubscribe(c.frames)
	g.mu.Lock()
	delete(g.connections, c.ID)
	total := len(g.connections)
	g.mu.Unlock()
	c.logger.Info("client disconnected", zap.Int("total", total))
}
