package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"social-service/internal/models"
)

// Settings bounds connection liveness and inbound traffic.
type Settings struct {
	PingPeriod      time.Duration
	IdleTimeout     time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
	EventsPerSecond float64
	EventBurst      int
	SendBuffer      int
}

// DefaultSettings ping every 54s and drop connections silent for 60s.
func DefaultSettings() Settings {
	return Settings{
		PingPeriod:      54 * time.Second,
		IdleTimeout:     60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageBytes: 64 * 1024,
		EventsPerSecond: 20,
		EventBurst:      40,
		SendBuffer:      64,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.PingPeriod <= 0 {
		s.PingPeriod = d.PingPeriod
	}
	if s.IdleTimeout <= s.PingPeriod {
		s.IdleTimeout = s.PingPeriod + s.PingPeriod/9
	}
	if s.WriteWait <= 0 {
		s.WriteWait = d.WriteWait
	}
	if s.MaxMessageBytes <= 0 {
		s.MaxMessageBytes = d.MaxMessageBytes
	}
	if s.EventsPerSecond <= 0 {
		s.EventsPerSecond = d.EventsPerSecond
	}
	if s.EventBurst <= 0 {
		s.EventBurst = d.EventBurst
	}
	if s.SendBuffer <= 0 {
		s.SendBuffer = d.SendBuffer
	}
	return s
}

var errRateLimited = errors.New("rate limit exceeded")

// Client is one websocket connection. A reader goroutine consumes inbound frames and a
// writer goroutine drains send; nothing else writes to conn.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	info      ConnInfo
	channel   models.Channel
	limiter   *rate.Limiter
	settings  Settings
	logger    *zap.Logger
}

func newClient(conn *websocket.Conn, info ConnInfo, channel models.Channel, settings Settings, logger *zap.Logger) *Client {
	settings = settings.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		conn:     conn,
		send:     make(chan []byte, settings.SendBuffer),
		done:     make(chan struct{}),
		info:     info,
		channel:  channel,
		limiter:  rate.NewLimiter(rate.Limit(settings.EventsPerSecond), settings.EventBurst),
		settings: settings,
		logger:   logger.With(zap.String("conn_id", info.ConnID), zap.Int("user_id", info.UserID), zap.String("channel", string(channel))),
	}
}

// UserID returns the account owning the connection.
func (c *Client) UserID() int {
	return c.info.UserID
}

// enqueue queues a frame without blocking. A full buffer closes the connection.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.Close()
		return false
	}
}

// Close stops the writer and closes the socket. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump feeds inbound frames to handle until the peer goes away or stays silent past
// the idle timeout. It returns the close reason.
func (c *Client) readPump(handle func(payload []byte)) string {
	c.conn.SetReadLimit(c.settings.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.settings.IdleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.settings.IdleTimeout))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read failed", zap.Error(err))
				return err.Error()
			}
			return ""
		}
		c.conn.SetReadDeadline(time.Now().Add(c.settings.IdleTimeout))

		if !c.limiter.Allow() {
			c.reject("", errRateLimited)
			continue
		}
		handle(payload)
	}
}

// writePump drains send and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.settings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reject answers a refused inbound frame with an error frame to this connection only.
func (c *Client) reject(event models.InboundType, reason error) {
	payload, err := models.EncodeOutbound(models.ErrorEvent{Event: event, Reason: reason.Error()})
	if err != nil {
		return
	}
	c.enqueue(payload)
}
