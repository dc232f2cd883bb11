package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"CostSim/internal/domain/models"
	drepo "CostSim/internal/domain/repository"
	"CostSim/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a MarketStream backed by an L2 order-book WebSocket feed.
// The subscription is encoded in the URL; every message carries full bid/ask
// ladders of which only the top level is consumed.
type Client struct {
	websocketURL   string
	exchange       string
	symbol         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *logger.Logger

	conn      *websocket.Conn
	connected atomic.Bool
}

// New creates a new order-book MarketStream.
func New(websocketURL, exchange, symbol string, reconnectDelay, pingInterval time.Duration, lgr *logger.Logger) drepo.MarketStream {
	return &Client{
		websocketURL:   websocketURL,
		exchange:       exchange,
		symbol:         symbol,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         lgr,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected.Store(true)
	c.logger.Info("feed: connected", logger.String("url", c.websocketURL))
	return nil
}

// flexFloat accepts JSON numbers encoded either as numbers or as strings,
// which the feed mixes freely.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse price level: %w", err)
	}
	*f = flexFloat(v)
	return nil
}

type bookMessage struct {
	Timestamp string         `json:"timestamp"`
	Exchange  string         `json:"exchange"`
	Symbol    string         `json:"symbol"`
	Bids      [][2]flexFloat `json:"bids"`
	Asks      [][2]flexFloat `json:"asks"`
}

// parseSnapshot normalizes one raw feed message into a top-of-book snapshot.
// A message missing either side is invalid and must be dropped by the caller.
func parseSnapshot(b []byte, fallbackExchange, fallbackSymbol string) (*models.BookSnapshot, error) {
	var m bookMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal book message: %w", err)
	}
	if len(m.Bids) == 0 || len(m.Asks) == 0 {
		return nil, fmt.Errorf("order book missing bid or ask side")
	}

	snap := &models.BookSnapshot{
		Exchange:   m.Exchange,
		Symbol:     m.Symbol,
		BestBid:    float64(m.Bids[0][0]),
		BestBidQty: float64(m.Bids[0][1]),
		BestAsk:    float64(m.Asks[0][0]),
		BestAskQty: float64(m.Asks[0][1]),
		Timestamp:  time.Now(),
	}
	if snap.Exchange == "" {
		snap.Exchange = fallbackExchange
	}
	if snap.Symbol == "" {
		snap.Symbol = fallbackSymbol
	}
	if ts, err := time.Parse(time.RFC3339Nano, m.Timestamp); err == nil {
		snap.Timestamp = ts
	}
	if snap.BestBid <= 0 || snap.BestAsk <= 0 {
		return nil, fmt.Errorf("non-positive top-of-book price (bid=%v ask=%v)", snap.BestBid, snap.BestAsk)
	}
	return snap, nil
}

// Read streams BookSnapshot events and errors. The snapshot channel closes
// when the read loop ends; the caller decides whether to Reconnect. The ping
// loop is bound to this read session and exits with it, so each session has
// exactly one writer on its connection.
func (c *Client) Read(ctx context.Context) (<-chan *models.BookSnapshot, <-chan error) {
	snaps := make(chan *models.BookSnapshot, 256)
	errs := make(chan error, 1)
	done := make(chan struct{})
	conn := c.conn

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(snaps)
		defer close(errs)
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				snap, err := parseSnapshot(b, c.exchange, c.symbol)
				if err != nil {
					// diagnostic only; malformed frames never propagate
					c.logger.Warn("feed: dropping snapshot", logger.Error(err))
					continue
				}
				select {
				case snaps <- snap:
				default:
					// drop on backpressure; only the latest book matters
				}
			}
		}
	}()

	return snaps, errs
}

// Reconnect closes, waits the fixed delay, and dials again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	return c.Connect(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected.Store(false)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected.Load() }
