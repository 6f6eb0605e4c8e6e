package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"backsim/internal/domain"
)

// WSFeedConfig configures the websocket feed.
type WSFeedConfig struct {
	// HandshakeTimeout bounds the initial dial.
	HandshakeTimeout time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
	// PingInterval is the interval for ping frames keeping the
	// connection alive.
	PingInterval time.Duration
}

// DefaultWSFeedConfig returns the default websocket feed configuration.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// wsMessage is the wire format the feed accepts: one bar or tick per
// message. Tick messages carry only price.
type wsMessage struct {
	Symbol      string  `json:"symbol"`
	Currency    string  `json:"currency"`
	TimestampMs int64   `json:"timestampMs"`
	Open        string  `json:"open,omitempty"`
	High        string  `json:"high,omitempty"`
	Low         string  `json:"low,omitempty"`
	Close       string  `json:"close,omitempty"`
	Price       string  `json:"price,omitempty"`
	Volume      float64 `json:"volume,omitempty"`
}

// WSFeed streams live JSON price messages from a websocket endpoint into
// an event channel, for paper trading against live prices. Unlike the
// historic feeds, the stream ends only on context cancellation, a closed
// channel, or a transport error.
type WSFeed struct {
	endpoint string
	config   WSFeedConfig
}

// NewWSFeed creates a feed for the given websocket endpoint.
func NewWSFeed(endpoint string, config *WSFeedConfig) *WSFeed {
	cfg := DefaultWSFeedConfig()
	if config != nil {
		cfg = *config
	}
	return &WSFeed{endpoint: endpoint, config: cfg}
}

// Play dials the endpoint and forwards messages as events until the
// context is cancelled or the channel is closed. It closes the channel on
// return.
func (f *WSFeed) Play(ctx context.Context, ch *EventChannel) error {
	defer ch.Close()

	dialer := websocket.Dialer{HandshakeTimeout: f.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Close the connection when the context ends so the read loop
	// unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	pinger := time.NewTicker(f.config.PingInterval)
	defer pinger.Stop()
	go func() {
		for {
			select {
			case <-pinger.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			case <-done:
				return
			}
		}
	}()

	var lastTime time.Time
	for {
		if f.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}

		event, err := parseWSMessage(data)
		if err != nil {
			// Malformed messages are skipped; the stream continues.
			continue
		}
		// Never emit out of order: a run requires strictly increasing
		// event times.
		if !event.Time.After(lastTime) {
			continue
		}
		lastTime = event.Time

		if err := ch.Send(event); err != nil {
			if errors.Is(err, ErrChannelClosed) {
				return nil
			}
			return err
		}
	}
}

var _ Feed = (*WSFeed)(nil)

func parseWSMessage(data []byte) (*domain.Event, error) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if msg.Symbol == "" || msg.TimestampMs <= 0 {
		return nil, errors.New("message missing symbol or timestamp")
	}
	currency := msg.Currency
	if currency == "" {
		currency = "USD"
	}
	asset := domain.NewCryptoAsset(msg.Symbol, currency)

	var action domain.PriceAction
	switch {
	case msg.Open != "" && msg.High != "" && msg.Low != "" && msg.Close != "":
		bar, err := parseBar(msg)
		if err != nil {
			return nil, err
		}
		action = bar
	case msg.Price != "":
		price, err := decimal.NewFromString(msg.Price)
		if err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		action = domain.TradePrice{Price: price, Volume: decimal.NewFromFloat(msg.Volume)}
	default:
		return nil, errors.New("message carries neither bar nor price")
	}

	t := time.UnixMilli(msg.TimestampMs).UTC()
	return domain.NewEvent(t, map[domain.Asset]domain.PriceAction{asset: action}), nil
}

func parseBar(msg wsMessage) (domain.Bar, error) {
	var bar domain.Bar
	var err error
	if bar.Open, err = decimal.NewFromString(msg.Open); err != nil {
		return bar, fmt.Errorf("parse open: %w", err)
	}
	if bar.High, err = decimal.NewFromString(msg.High); err != nil {
		return bar, fmt.Errorf("parse high: %w", err)
	}
	if bar.Low, err = decimal.NewFromString(msg.Low); err != nil {
		return bar, fmt.Errorf("parse low: %w", err)
	}
	if bar.Close, err = decimal.NewFromString(msg.Close); err != nil {
		return bar, fmt.Errorf("parse close: %w", err)
	}
	bar.Volume = decimal.NewFromFloat(msg.Volume)
	if !bar.Valid() {
		return bar, errors.New("bar prices not usable")
	}
	return bar, nil
}
