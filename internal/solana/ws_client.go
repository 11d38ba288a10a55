package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSClient implements PubsubClient using gorilla/websocket. It reconnects
// with backoff and re-issues active subscriptions after reconnect.
type WSClient struct {
	endpoint string
	config   WSConfig

	conn         *websocket.Conn
	connMu       sync.Mutex
	closed       atomic.Bool
	reconnecting atomic.Bool
	requestID    atomic.Uint64

	// subs maps server subscription ID to the delivery channel.
	subs   map[int64]chan LogNotification
	subsMu sync.Mutex

	// mentions stores the address per subscription for resubscription.
	mentions map[int64]string

	// pending maps request ID to a channel waiting for the subscription ID.
	pending map[uint64]chan int64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient creates a WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClient{
		endpoint: endpoint,
		config:   cfg,
		subs:     make(map[int64]chan LogNotification),
		mentions: make(map[int64]string),
		pending:  make(map[uint64]chan int64),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *WSClient) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.endpoint, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// SubscribeMentions issues a logsSubscribe for transactions mentioning the
// address and returns the notification channel.
func (c *WSClient) SubscribeMentions(ctx context.Context, address string) (<-chan LogNotification, error) {
	subID, err := c.subscribe(ctx, address)
	if err != nil {
		return nil, err
	}

	ch := make(chan LogNotification, 64)
	c.subsMu.Lock()
	c.subs[subID] = ch
	c.mentions[subID] = address
	c.subsMu.Unlock()

	return ch, nil
}

func (c *WSClient) subscribe(ctx context.Context, address string) (int64, error) {
	reqID := c.requestID.Add(1)
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{address}},
			map[string]interface{}{"commitment": "confirmed"},
		},
	}

	waiter := make(chan int64, 1)
	c.subsMu.Lock()
	c.pending[reqID] = waiter
	c.subsMu.Unlock()
	defer func() {
		c.subsMu.Lock()
		delete(c.pending, reqID)
		c.subsMu.Unlock()
	}()

	if err := c.writeJSON(req); err != nil {
		return 0, fmt.Errorf("logsSubscribe: %w", err)
	}

	select {
	case subID := <-waiter:
		return subID, nil
	case <-c.done:
		return 0, fmt.Errorf("logsSubscribe: client closed")
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(30 * time.Second):
		return 0, fmt.Errorf("logsSubscribe: timed out waiting for subscription id")
	}
}

func (c *WSClient) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// wsMessage covers both subscription confirmations and notifications.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Context struct {
				Slot int64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string      `json:"signature"`
				Err       interface{} `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (c *WSClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			// Reconnect in flight; wait for it to restore the connection.
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Reconnect runs on its own goroutine so this loop stays
			// free to read the resubscription confirmations.
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay *= 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		reconnectDelay = c.config.ReconnectDelay

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch {
		case msg.ID != 0 && len(msg.Result) > 0:
			// Subscription confirmation: result is the subscription id.
			var subID int64
			if json.Unmarshal(msg.Result, &subID) == nil {
				c.subsMu.Lock()
				if waiter, ok := c.pending[msg.ID]; ok {
					waiter <- subID
				}
				c.subsMu.Unlock()
			}

		case msg.Method == "logsNotification" && msg.Params != nil:
			notif := LogNotification{
				Signature: msg.Params.Result.Value.Signature,
				Slot:      msg.Params.Result.Context.Slot,
				Err:       msg.Params.Result.Value.Err,
			}
			c.subsMu.Lock()
			ch, ok := c.subs[msg.Params.Subscription]
			c.subsMu.Unlock()
			if ok {
				select {
				case ch <- notif:
				default:
					// Slow consumer; hints are best-effort, drop.
				}
			}
		}
	}
}

// reconnect re-dials after a delay and re-issues active subscriptions. It
// runs on its own goroutine, guarded by the reconnecting flag, so the read
// loop keeps draining confirmations while subscriptions are re-issued. A
// failed dial retries on the next read error.
func (c *WSClient) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.connect(ctx); err != nil {
		return
	}

	c.resubscribeAll()
}

// resubscribeAll re-issues logsSubscribe for every active subscription,
// migrating the delivery channels to the new subscription ids. A failed
// resubscribe keeps the old mapping so the channel survives for the next
// reconnect attempt.
func (c *WSClient) resubscribeAll() {
	c.subsMu.Lock()
	active := make(map[int64]string, len(c.mentions))
	for id, addr := range c.mentions {
		active[id] = addr
	}
	c.subsMu.Unlock()

	for oldID, addr := range active {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		newID, err := c.subscribe(ctx, addr)
		cancel()
		if err != nil {
			continue
		}

		c.subsMu.Lock()
		if ch, ok := c.subs[oldID]; ok {
			delete(c.subs, oldID)
			delete(c.mentions, oldID)
			c.subs[newID] = ch
			c.mentions[newID] = addr
		}
		c.subsMu.Unlock()
	}
}

func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			if conn != nil {
				conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// Close closes the connection and all subscription channels.
func (c *WSClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	return nil
}
