package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kiko-poker/backend/internal/models"
	"github.com/kiko-poker/backend/pkg/response"
)

// SessionStore is the part of the session store a connection drives.
type SessionStore interface {
	Join(id models.SessionID, participantName string) (models.ParticipantID, models.Session, error)
	Leave(id models.SessionID, participantID models.ParticipantID) (models.Session, error)
	CastVote(id models.SessionID, participantID models.ParticipantID, vote models.Vote) (models.Session, error)
	Reveal(id models.SessionID) (models.Session, error)
	NewRound(id models.SessionID, topic string) (models.Session, error)
	Snapshot(id models.SessionID) (models.Session, error)
	Now() time.Time
}

// GatewayConfig holds per-connection transport settings.
type GatewayConfig struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	MaxMessageSize int64
	CheckOrigin    func(r *http.Request) bool
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 16
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
	return c
}

// ConnState is where a connection is in its lifecycle.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateJoined
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	default:
		return "closed"
	}
}

// Gateway bridges one WebSocket connection to the store and the hub.
// readPump owns inbound frames; writePump is the only writer of data frames.
type Gateway struct {
	ID        string
	sessionID models.SessionID
	store     SessionStore
	hub       *Hub
	conn      *websocket.Conn
	cfg       GatewayConfig
	logger    *zap.Logger

	send chan outbound
	done chan struct{}

	mu            sync.Mutex
	state         ConnState
	participantID models.ParticipantID
	sub           *Subscription
	closeOnce     sync.Once
}

// outbound is one item for the write pump. join is set once, when the
// participant is admitted; everything else is a plain frame.
type outbound struct {
	frame ServerFrame
	join  *joinResult
}

type joinResult struct {
	sub           *Subscription
	participantID models.ParticipantID
	session       models.Session
}

// ServeWs upgrades GET /api/v1/sessions/:id/ws and runs the connection until it closes.
func ServeWs(store SessionStore, hub *Hub, cfg GatewayConfig, logger *zap.Logger) gin.HandlerFunc {
	cfg = cfg.withDefaults()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     cfg.CheckOrigin,
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		sessionID := models.SessionID(c.Param("id"))
		if _, err := store.Snapshot(sessionID); errors.Is(err, models.ErrNotFound) {
			response.Error(c, err)
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		g := newGateway(sessionID, store, hub, conn, cfg, logger)
		go g.writePump()
		g.readPump()
	}
}

func newGateway(sessionID models.SessionID, store SessionStore, hub *Hub, conn *websocket.Conn, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	id := uuid.NewString()
	return &Gateway{
		ID:        id,
		sessionID: sessionID,
		store:     store,
		hub:       hub,
		conn:      conn,
		cfg:       cfg,
		logger:    logger.With(zap.String("conn_id", id), zap.String("session_id", sessionID.String())),
		send:      make(chan outbound, cfg.SendBuffer),
		done:      make(chan struct{}),
	}
}

// State reports the connection's lifecycle position.
func (g *Gateway) State() ConnState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gateway) readPump() {
	defer g.shutdown("read loop ended")

	g.conn.SetReadLimit(g.cfg.MaxMessageSize)
	g.extendDeadline()
	g.conn.SetPongHandler(func(string) error {
		g.extendDeadline()
		return nil
	})

	for {
		_, data, err := g.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("connection read failed", zap.Error(err))
			}
			return
		}
		g.extendDeadline()

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			g.reply(errorFrame(fmt.Errorf("malformed frame: %v: %w", err, models.ErrInvalidArgument)))
			continue
		}
		if !g.handle(frame) {
			return
		}
	}
}

// handle applies one inbound frame. It returns false when the connection should close.
func (g *Gateway) handle(f ClientFrame) bool {
	if f.Type == FrameHeartbeat {
		g.reply(heartbeatFrame)
		return true
	}

	g.mu.Lock()
	state, pid := g.state, g.participantID
	g.mu.Unlock()

	if f.Type == FrameJoin {
		if state == StateJoined {
			g.reply(errorFrame(fmt.Errorf("already joined as %s: %w", pid, models.ErrProtocol)))
			return true
		}
		g.join(f.ParticipantName)
		return true
	}
	if state != StateJoined {
		g.reply(errorFrame(fmt.Errorf("%q before join: %w", f.Type, models.ErrProtocol)))
		return true
	}

	var err error
	switch f.Type {
	case FrameLeave:
		if _, err = g.store.Leave(g.sessionID, pid); err != nil {
			g.logger.Debug("leave failed", zap.Error(err))
		}
		g.mu.Lock()
		g.state = StateClosed
		g.mu.Unlock()
		return false
	case FrameCastVote:
		_, err = g.store.CastVote(g.sessionID, pid, f.Value)
	case FrameReveal:
		_, err = g.store.Reveal(g.sessionID)
	case FrameNewRound:
		_, err = g.store.NewRound(g.sessionID, f.Topic)
	default:
		err = fmt.Errorf("unknown frame type %q: %w", f.Type, models.ErrProtocol)
	}
	if err != nil {
		g.logger.Debug("command rejected",
			zap.String("type", string(f.Type)),
			zap.String("kind", string(models.KindOf(err))),
			zap.Error(err),
		)
		g.reply(errorFrame(err))
	}
	return true
}

// join subscribes before joining so no event between the two is missed; the
// write pump discards anything not newer than the initial snapshot.
func (g *Gateway) join(name string) {
	sub := g.hub.Subscribe(g.sessionID)
	pid, sess, err := g.store.Join(g.sessionID, name)
	if err != nil {
		g.hub.Unsubscribe(sub)
		g.reply(errorFrame(err))
		return
	}

	g.mu.Lock()
	g.state = StateJoined
	g.participantID = pid
	g.sub = sub
	g.mu.Unlock()

	g.enqueue(outbound{join: &joinResult{sub: sub, participantID: pid, session: sess}})
	g.logger.Info("participant joined", zap.String("participant_id", pid.String()))
}

// reply queues a frame for this connection only. A full queue means the peer is
// not reading, which closes the connection.
func (g *Gateway) reply(f ServerFrame) {
	g.enqueue(outbound{frame: f})
}

func (g *Gateway) enqueue(o outbound) {
	select {
	case g.send <- o:
	default:
		g.logger.Warn("outbound buffer full, closing connection")
		_ = g.conn.Close()
	}
}

func (g *Gateway) writePump() {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = g.conn.Close()
	}()

	var (
		events      <-chan models.Event
		sub         *Subscription
		lastVersion uint64
	)
	for {
		select {
		case <-g.done:
			g.writeClose(nil)
			return
		case o := <-g.send:
			f := o.frame
			if j := o.join; j != nil {
				sub, events, lastVersion = j.sub, j.sub.C(), j.session.Version
				f = snapshotFrame("", j.session, g.store.Now())
				f.ParticipantID = j.participantID
			}
			if err := g.write(f); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				if err := sub.Err(); err != nil {
					g.logger.Info("subscription dropped", zap.Error(err))
				}
				g.writeClose(sub.Err())
				return
			}
			if ev.Version() <= lastVersion {
				continue
			}
			lastVersion = ev.Version()
			if err := g.write(snapshotFrame(ev.Kind, ev.Session, g.store.Now())); err != nil {
				return
			}
		case <-ticker.C:
			_ = g.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait))
			if err := g.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) write(f ServerFrame) error {
	_ = g.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait))
	if err := g.conn.WriteJSON(f); err != nil {
		g.logger.Debug("write failed", zap.Error(err))
		return err
	}
	return nil
}

// writeClose sends the close frame matching why the connection ends. A nil
// reason is a normal close.
func (g *Gateway) writeClose(reason error) {
	code, text := websocket.CloseNormalClosure, ""
	switch {
	case errors.Is(reason, models.ErrResourceExhausted):
		code, text = websocket.CloseTryAgainLater, string(models.KindResourceExhausted)
	case errors.Is(reason, models.ErrNotFound):
		code, text = websocket.CloseGoingAway, string(models.KindNotFound)
	}
	_ = g.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(g.cfg.WriteWait))
}

func (g *Gateway) extendDeadline() {
	_ = g.conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
}

// shutdown runs once per connection: it tells the write pump to send a close
// frame, then unsubscribes and removes the participant.
func (g *Gateway) shutdown(reason string) {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		wasJoined := g.state == StateJoined
		g.state = StateClosed
		sub, pid := g.sub, g.participantID
		g.mu.Unlock()

		close(g.done)
		g.hub.Unsubscribe(sub)
		if wasJoined {
			if _, err := g.store.Leave(g.sessionID, pid); err != nil && !errors.Is(err, models.ErrNotFound) {
				g.logger.Warn("leave on disconnect failed", zap.Error(err))
			}
		}
		g.logger.Info("connection closed",
			zap.String("participant_id", pid.String()),
			zap.String("reason", reason),
		)
	})
}
