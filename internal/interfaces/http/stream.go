package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"orderflow/internal/application/service/session"
	"orderflow/internal/domain/entity/marketdata"
	apperrors "orderflow/internal/errors"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = pongWait * 9 / 10
	maxClientMessage    = 4096
	defaultPushInterval = time.Second
	maxSessionWindow    = 24 * time.Hour
)

// Client message types.
const (
	msgReplay = "replay"
	msgCursor = "cursor"
	msgStep   = "step"
	msgFilter = "filter"
)

type clientMessage struct {
	Type        string   `json:"type"`
	Enabled     *bool    `json:"enabled,omitempty"`
	Ts          *int64   `json:"ts,omitempty"`
	N           int      `json:"n,omitempty"`
	MinQuantity *float64 `json:"minQuantity,omitempty"`
}

type serverEvent struct {
	Type     string            `json:"type"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// streamSession upgrades to a websocket bound to one live session
// @Summary      Live order flow session
// @Description  Websocket. Pushes session snapshots every push interval and accepts replay, cursor, step and filter messages.
// @Tags         orderflow
// @Param        symbol         query  string  true   "Symbol"
// @Param        timeframe      query  string  false  "Bucket size of the session bars"
// @Param        windowSeconds  query  int     false  "Rolling window length"
// @Param        priceStep      query  number  false  "Fixed price step"
// @Param        minQuantity    query  number  false  "Hide trades below this quantity"
// @Failure      400            {object}  map[string]string
// @Router       /orderflow/stream [get]
func (h *Handler) streamSession(c *gin.Context) {
	cfg, err := h.sessionConfig(c)
	if err != nil {
		h.respondError(c, err, "failed to open session")
		return
	}
	// The session outlives the upgrade request, so it is not bound to its context.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	sess, closeSession, err := h.orderflow.Session(ctx, cfg)
	if err != nil {
		h.respondError(c, err, "failed to open session")
		return
	}
	defer closeSession()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.logger.WithField("symbol", sess.Symbol())
	log.Debug("session opened")
	h.serveSession(ctx, cancel, conn, sess)
	log.Debug("session closed")
}

func (h *Handler) sessionConfig(c *gin.Context) (session.Config, error) {
	cfg := session.Config{
		Symbol:              c.Query("symbol"),
		Window:              h.session.Window,
		BucketSize:          h.session.BucketSize,
		PriceStep:           parsePositiveFloat(c.Query("priceStep")),
		LargeTradeThreshold: h.session.LargeTradeThreshold,
		MaxTrades:           h.session.MaxTrades,
	}
	if cfg.Symbol == "" {
		return cfg, apperrors.Validation("missing_symbol", "symbol is required")
	}
	if raw := c.Query("timeframe"); raw != "" {
		tf, err := marketdata.ParseTimeframe(raw)
		if err != nil {
			return cfg, err
		}
		cfg.BucketSize = tf.Duration()
	}
	if seconds := parseIntOrZero(c.Query("windowSeconds")); seconds > 0 {
		cfg.Window = min(time.Duration(seconds)*time.Second, maxSessionWindow)
	}
	if q := parsePositiveFloat(c.Query("minQuantity")); q != nil {
		cfg.MinQuantity = *q
	}
	return cfg, nil
}

// serveSession pushes snapshots until the client goes away. The reader goroutine applies
// client commands to the session and asks the writer for an immediate push.
func (h *Handler) serveSession(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sess *session.RollingWindowSession) {
	kick := make(chan struct{}, 1)
	events := make(chan serverEvent, 8)

	go func() {
		defer cancel()
		conn.SetReadLimit(maxClientMessage)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if event, ok := applyClientMessage(sess, data); ok {
				select {
				case events <- event:
				default:
				}
			}
			select {
			case kick <- struct{}{}:
			default:
			}
		}
	}()

	interval := h.session.PushInterval
	if interval <= 0 {
		interval = defaultPushInterval
	}
	push := time.NewTicker(interval)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.pushSnapshot(conn, sess); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case event := <-events:
			if err := writeEvent(conn, event); err != nil {
				return
			}
		case <-kick:
			if err := h.pushSnapshot(conn, sess); err != nil {
				return
			}
		case <-push.C:
			if err := h.pushSnapshot(conn, sess); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// applyClientMessage executes one command and returns an event to send back, if any.
func applyClientMessage(sess *session.RollingWindowSession, data []byte) (serverEvent, bool) {
	var msg clientMessage
	if err := codec.Unmarshal(data, &msg); err != nil {
		return serverEvent{Type: "error", Error: "invalid message"}, true
	}
	var err error
	switch msg.Type {
	case msgReplay:
		if msg.Enabled == nil {
			return serverEvent{Type: "error", Error: "replay requires enabled"}, true
		}
		sess.ToggleReplay(*msg.Enabled)
	case msgCursor:
		if msg.Ts == nil {
			return serverEvent{Type: "error", Error: "cursor requires ts"}, true
		}
		_, err = sess.SetCursor(*msg.Ts)
	case msgStep:
		_, err = sess.Step(msg.N)
	case msgFilter:
		q := 0.0
		if msg.MinQuantity != nil {
			q = *msg.MinQuantity
		}
		sess.SetMinQuantity(q)
	default:
		return serverEvent{Type: "error", Error: "unknown message type " + strconv.Quote(msg.Type)}, true
	}
	if err != nil {
		message := err.Error()
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
		return serverEvent{Type: "error", Error: message}, true
	}
	return serverEvent{}, false
}

func (h *Handler) pushSnapshot(conn *websocket.Conn, sess *session.RollingWindowSession) error {
	snap, err := sess.Snapshot()
	if err != nil {
		h.logger.WithError(err).WithField("symbol", sess.Symbol()).Warn("session snapshot failed")
		return writeEvent(conn, serverEvent{Type: "error", Error: "failed to build snapshot"})
	}
	return writeEvent(conn, serverEvent{Type: "snapshot", Snapshot: &snap})
}

func writeEvent(conn *websocket.Conn, event serverEvent) error {
	data, err := codec.Marshal(event)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

var _ http.Handler = (*Handler)(nil)
