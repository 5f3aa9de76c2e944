package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000
)

// Message types on the live stream.
const (
	wsTypeState   = "state"
	wsTypeRefresh = "refresh"
)

// Envelope used for WebSocket messages in both directions.
type wsEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// The dashboard is served from another origin on the farm LAN.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveStream tracks what the client last received so unchanged views are not resent.
type liveStream struct {
	h    *Handler
	conn *websocket.Conn
	last []byte
}

// wsConnect streams the live view. The view is sampled every interval and
// written only when it differs from the previous frame; a client message
// {"type":"refresh"} forces a resend.
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	refresh := make(chan struct{}, 1)
	go h.readClient(conn, refresh, done)

	sample := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		sample.Stop()
		ping.Stop()
	}()

	s := &liveStream{h: h, conn: conn}
	if err := s.push(true); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		var err error
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteMessage(websocket.PingMessage, nil)
		case <-refresh:
			err = s.push(true)
		case <-sample.C:
			err = s.push(false)
		}
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_write_failed", "err", err)
			}
			return
		}
	}
}

// push writes the current view if it changed or force is set.
func (s *liveStream) push(force bool) error {
	msg, err := json.Marshal(wsEnvelope{Type: wsTypeState, Data: s.h.services.Live.View()})
	if err != nil {
		return err
	}
	if !force && bytes.Equal(msg, s.last) {
		return nil
	}
	s.last = msg
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}

// readClient handles control frames and client requests until the peer goes away.
// Unknown message types are ignored.
func (h *Handler) readClient(conn *websocket.Conn, refresh chan<- struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
		var in wsEnvelope
		if err := json.Unmarshal(data, &in); err != nil {
			if h.log != nil {
				h.log.Debugw("ws_bad_client_message", "err", err)
			}
			continue
		}
		if in.Type == wsTypeRefresh {
			select {
			case refresh <- struct{}{}:
			default:
			}
		}
	}
}
