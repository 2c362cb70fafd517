package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"supertrend-core/internal/market"
)

// WSFeed streams last-traded-price ticks from the broker websocket.
type WSFeed struct {
	url  string
	auth string
	log  zerolog.Logger
}

// NewWSFeed builds a live tick stream. Auth matches the REST header
// format "<clientID>:<accessToken>".
func NewWSFeed(url, clientID, accessToken string, log zerolog.Logger) *WSFeed {
	return &WSFeed{
		url:  url,
		auth: clientID + ":" + accessToken,
		log:  log.With().Str("component", "ws-feed").Logger(),
	}
}

type wsSubscribe struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

type wsTick struct {
	Symbol string  `json:"symbol"`
	LTP    float64 `json:"ltp"`
	Volume float64 `json:"vol_traded_today"`
	Ts     int64   `json:"exch_feed_time"`
}

// Subscribe connects and streams ticks for the given symbols until the
// context ends or stop is called. The channel closes on disconnect.
func (f *WSFeed) Subscribe(ctx context.Context, symbols []string) (<-chan market.Tick, func(), error) {
	header := map[string][]string{"Authorization": {f.auth}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, header)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", f.url, err)
	}
	if err := conn.WriteJSON(wsSubscribe{Type: "subscribe", Symbols: symbols}); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	ticks := make(chan market.Tick, 256)
	var once sync.Once
	stop := func() {
		once.Do(func() { conn.Close() })
	}

	go func() {
		<-ctx.Done()
		stop()
	}()

	go func() {
		defer close(ticks)
		defer stop()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					f.log.Warn().Err(err).Msg("feed read failed")
				}
				return
			}
			var t wsTick
			if err := json.Unmarshal(raw, &t); err != nil || t.Symbol == "" {
				continue
			}
			ts := time.Now()
			if t.Ts > 0 {
				ts = time.Unix(t.Ts, 0)
			}
			tick := market.Tick{Symbol: t.Symbol, Price: t.LTP, Volume: t.Volume, Ts: ts}
			select {
			case ticks <- tick:
			default:
				f.log.Warn().Str("symbol", t.Symbol).Msg("tick buffer full, dropping")
			}
		}
	}()

	return ticks, stop, nil
}
