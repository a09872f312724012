package valuation

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkorzen/poly-pnl/internal/identity"
)

// MarkTable is an in-memory MarkSource holding the last observed trade
// price per outcome. Written by the TradeFeed, read by the ledger.
type MarkTable struct {
	mu     sync.RWMutex
	prices map[Key]float64
}

// NewMarkTable creates an empty mark table.
func NewMarkTable() *MarkTable {
	return &MarkTable{prices: make(map[Key]float64)}
}

// Set records the latest trade price for a key.
func (t *MarkTable) Set(key Key, price float64) {
	t.mu.Lock()
	t.prices[key] = price
	t.mu.Unlock()
}

// MarkPrice implements MarkSource.
func (t *MarkTable) MarkPrice(_ context.Context, key Key) (float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.prices[key]; ok {
		return p, nil
	}
	return 0, &MissingValuationError{Key: key}
}

// MarkPrices implements MarkSource.
func (t *MarkTable) MarkPrices(_ context.Context, keys []Key) (map[Key]float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[Key]float64, len(keys))
	for _, k := range keys {
		if p, ok := t.prices[k]; ok {
			out[k] = p
		}
	}
	return out, nil
}

// Size returns the number of keys with a known mark.
func (t *MarkTable) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.prices)
}

// FeedConfig holds trade feed configuration.
type FeedConfig struct {
	URL                string        // WebSocket endpoint
	PingInterval       time.Duration // Keepalive ping cadence
	ReadTimeout        time.Duration // Max silence before reconnect
	ReconnectBaseDelay time.Duration // First reconnect backoff
	ReconnectMaxDelay  time.Duration // Backoff ceiling
}

// DefaultFeedConfig returns sensible defaults.
func DefaultFeedConfig(url string) FeedConfig {
	return FeedConfig{
		URL:                url,
		PingInterval:       15 * time.Second,
		ReadTimeout:        30 * time.Second,
		ReconnectBaseDelay: time.Second,
		ReconnectMaxDelay:  60 * time.Second,
	}
}

// tradeMessage is one last-trade update from the venue stream.
type tradeMessage struct {
	Market  string  `json:"market"`
	Outcome int     `json:"outcome"`
	Price   float64 `json:"price"`
}

// TradeFeed maintains a MarkTable from the venue's trade stream.
// Reconnects with exponential backoff; the table keeps serving the last
// known prices across reconnects.
type TradeFeed struct {
	cfg    FeedConfig
	table  *MarkTable
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	connected bool
}

// NewTradeFeed creates a trade feed writing into the given table.
func NewTradeFeed(cfg FeedConfig, table *MarkTable, logger *slog.Logger) *TradeFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &TradeFeed{
		cfg:    cfg,
		table:  table,
		logger: logger,
	}
}

// Start launches the connect/read loop.
func (f *TradeFeed) Start(ctx context.Context) {
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.wg.Add(1)
	go f.runLoop()
	f.logger.Info("trade feed started", "url", f.cfg.URL)
}

// Stop closes the feed.
func (f *TradeFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	f.logger.Info("trade feed stopped")
}

// IsConnected reports current connection state.
func (f *TradeFeed) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *TradeFeed) runLoop() {
	defer f.wg.Done()

	backoff := f.cfg.ReconnectBaseDelay
	for {
		if f.ctx.Err() != nil {
			return
		}

		err := f.connectAndRead()
		if f.ctx.Err() != nil {
			return
		}
		f.logger.Warn("trade feed disconnected", "error", err, "reconnect_in", backoff)

		select {
		case <-f.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > f.cfg.ReconnectMaxDelay {
			backoff = f.cfg.ReconnectMaxDelay
		}
	}
}

// connectAndRead dials the stream and consumes it until an error.
func (f *TradeFeed) connectAndRead() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(f.ctx, f.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.setConnected(true)
	defer f.setConnected(false)
	f.logger.Info("trade feed connected")

	// Keepalive pings
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(f.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-f.ctx.Done():
				conn.Close() // unblock ReadMessage
				return
			case <-ticker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handleMessage(data)
	}
}

func (f *TradeFeed) handleMessage(data []byte) {
	var msg tradeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		f.logger.Debug("unparseable trade message", "error", err)
		return
	}
	if msg.Market == "" {
		return
	}

	id, err := identity.Normalize(msg.Market)
	if err != nil {
		f.logger.Debug("trade with unrecognized market id", "market", msg.Market)
		return
	}
	f.table.Set(Key{MarketID: id, Outcome: msg.Outcome}, msg.Price)
}

func (f *TradeFeed) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}
