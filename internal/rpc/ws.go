package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HeadFeedConfig configures the WebSocket head subscription.
type HeadFeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
}

// DefaultHeadFeedConfig returns default WebSocket configuration.
func DefaultHeadFeedConfig() HeadFeedConfig {
	return HeadFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// NewHead is a new-block notification from the node.
type NewHead struct {
	Number int64
	Hash   string
}

// HeadFeed subscribes to eth_subscribe("newHeads") over WebSocket and
// delivers block heads on a channel. It resubscribes automatically after
// connection loss.
type HeadFeed struct {
	endpoint string
	config   HeadFeedConfig
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	heads chan NewHead
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewHeadFeed connects to the endpoint and starts the subscription.
func NewHeadFeed(ctx context.Context, endpoint string, config *HeadFeedConfig, logger *zap.Logger) (*HeadFeed, error) {
	cfg := DefaultHeadFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &HeadFeed{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		heads:    make(chan NewHead, 64),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(2)
	go f.readLoop()
	go f.pingLoop()

	return f, nil
}

// Heads returns the channel of new block heads. Closed on shutdown.
func (f *HeadFeed) Heads() <-chan NewHead {
	return f.heads
}

// Close shuts the feed down and waits for the reader to exit.
func (f *HeadFeed) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(f.done)
	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()
	f.wg.Wait()
	close(f.heads)
	return nil
}

// connect dials the endpoint and sends the newHeads subscription request.
func (f *HeadFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	sub := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_subscribe",
		"params":  []any{"newHeads"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe newHeads: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	return nil
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (f *HeadFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, the reader handles reconnect
				}
			}
			f.connMu.Unlock()
		}
	}
}

// wsNotification is the subscription notification envelope.
type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Number string `json:"number"`
			Hash   string `json:"hash"`
		} `json:"result"`
	} `json:"params"`
}

// readLoop reads notifications and reconnects with backoff on failure.
func (f *HeadFeed) readLoop() {
	defer f.wg.Done()

	delay := f.config.ReconnectDelay
	for {
		select {
		case <-f.done:
			return
		default:
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}
			f.logger.Warn("head feed read failed, reconnecting",
				zap.Error(err), zap.Duration("delay", delay))
			select {
			case <-f.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > f.config.MaxReconnectDelay {
				delay = f.config.MaxReconnectDelay
			}
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := f.connect(ctx); err != nil {
				f.logger.Warn("head feed reconnect failed", zap.Error(err))
			}
			cancel()
			continue
		}
		delay = f.config.ReconnectDelay

		var note wsNotification
		if err := json.Unmarshal(msg, &note); err != nil || note.Method != "eth_subscription" {
			// Subscription confirmations and pongs land here
			continue
		}

		num, err := ParseHexInt64(note.Params.Result.Number)
		if err != nil {
			f.logger.Warn("head feed malformed block number",
				zap.String("number", note.Params.Result.Number))
			continue
		}

		select {
		case f.heads <- NewHead{Number: num, Hash: note.Params.Result.Hash}:
		case <-f.done:
			return
		}
	}
}
