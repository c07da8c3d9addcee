package ws

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"spell-and-sprint/client/internal/client"
	"spell-and-sprint/client/internal/net/proto"
	"spell-and-sprint/client/internal/transport"
)

const (
	writeDeadline       = 5 * time.Second
	unreliableQueueSize = 64

	unreliableDropMetricKey = "transport_unreliable_dropped_total"
)

type telemetryMetrics interface {
	Add(string, uint64)
}

// Client owns one websocket connection to the room server. Decoded inbound
// messages land in the shared event queue; reliable sends go through a
// mutex-guarded writer, unreliable sends through a drop-on-full channel so a
// congested link sheds acks instead of blocking the tick.
type Client struct {
	conn    *websocket.Conn
	queue   *transport.EventQueue
	metrics telemetryMetrics
	logger  zerolog.Logger

	writeMu    sync.Mutex
	unreliable chan proto.ClientMessage

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the room server at addr (host:port) and starts the read
// and write pumps. Inbound traffic is staged in queue for the per-tick drain.
func Dial(addr string, queue *transport.EventQueue, metrics telemetryMetrics, logger zerolog.Logger) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}

	c := &Client{
		conn:       conn,
		queue:      queue,
		metrics:    metrics,
		logger:     logger,
		unreliable: make(chan proto.ClientMessage, unreliableQueueSize),
		done:       make(chan struct{}),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

// SendReliable stamps the session id and writes the message synchronously.
// Write failures close the socket; the loss surfaces as a Disconnected event
// from the read pump.
func (c *Client) SendReliable(rec *client.ConnectionRecord, msg proto.ClientMessage) {
	if c == nil || rec == nil {
		return
	}
	msg.SessionID = rec.SessionID
	data, err := proto.EncodeClientMessage(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("type", msg.Type).Msg("encode outbound message")
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Warn().Err(err).Str("type", msg.Type).Msg("reliable send failed")
		c.Close()
	}
}

// SendUnreliable stamps the session id and enqueues the message for the write
// pump, dropping it if the channel is full.
func (c *Client) SendUnreliable(rec *client.ConnectionRecord, msg proto.ClientMessage) {
	if c == nil || rec == nil {
		return
	}
	msg.SessionID = rec.SessionID
	select {
	case c.unreliable <- msg:
	default:
		if c.metrics != nil {
			c.metrics.Add(unreliableDropMetricKey, 1)
		}
	}
}

// Close tears down the socket. Safe to call more than once.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer c.Close()
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Debug().Err(err).Msg("socket closed")
			}
			c.queue.Push(transport.DisconnectedEvent())
			return
		}

		msg, err := proto.DecodeServerMessage(payload)
		if err != nil {
			c.logger.Warn().Err(err).Msg("discarding malformed server message")
			continue
		}
		c.queue.Push(transport.MessageEvent(msg))
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.unreliable:
			data, err := proto.EncodeClientMessage(msg)
			if err != nil {
				c.logger.Error().Err(err).Str("type", msg.Type).Msg("encode outbound message")
				continue
			}
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			err = c.conn.WriteMessage(websocket.TextMessage, data)
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug().Err(err).Str("type", msg.Type).Msg("unreliable send failed")
				c.Close()
				return
			}
		}
	}
}
