// Package ingest consumes Binance market data streams and normalizes them
// into the pipeline's event types.
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pair_trader/internal/core"
)

// combinedEnvelope is the /stream?streams= wrapper. Raw single-stream
// messages arrive without it.
type combinedEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type tradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
}

// depthEvent is a partial book snapshot. The payload carries no symbol;
// it is recovered from the combined stream name.
type depthEvent struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// Normalizer converts raw Binance messages into MarketTick/BookUpdate
// events. Unrecognized message shapes are ignored, not errors.
type Normalizer struct {
	exchange string
}

func NewNormalizer(exchange string) *Normalizer {
	return &Normalizer{exchange: exchange}
}

// Normalize parses one message. Exactly one of the returned tick/book is
// non-nil for a recognized event; both are nil for ignored ones.
func (n *Normalizer) Normalize(message []byte) (*core.MarketTick, *core.BookUpdate, error) {
	payload := message
	stream := ""

	var env combinedEnvelope
	if err := json.Unmarshal(message, &env); err == nil && env.Stream != "" {
		payload = env.Data
		stream = env.Stream
	}

	var probe struct {
		EventType string          `json:"e"`
		Bids      json.RawMessage `json:"bids"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, nil, fmt.Errorf("malformed message: %w", err)
	}

	switch {
	case probe.EventType == "trade":
		tick, err := n.normalizeTrade(payload)
		return tick, nil, err
	case probe.EventType == "" && probe.Bids != nil:
		book, err := n.normalizeDepth(payload, stream)
		return nil, book, err
	default:
		return nil, nil, nil
	}
}

func (n *Normalizer) normalizeTrade(payload []byte) (*core.MarketTick, error) {
	var ev tradeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("malformed trade event: %w", err)
	}

	price, err := decimal.NewFromString(ev.Price)
	if err != nil {
		return nil, fmt.Errorf("bad trade price %q: %w", ev.Price, err)
	}
	quantity, err := decimal.NewFromString(ev.Quantity)
	if err != nil {
		return nil, fmt.Errorf("bad trade quantity %q: %w", ev.Quantity, err)
	}

	// The maker flag refers to the buyer, so the taker sold
	side := core.SideBuy
	if ev.BuyerIsMaker {
		side = core.SideSell
	}

	ts := ev.TradeTime
	if ts == 0 {
		ts = ev.EventTime
	}

	return &core.MarketTick{
		Timestamp: time.UnixMilli(ts).UTC(),
		Exchange:  n.exchange,
		Pair:      ev.Symbol,
		Price:     price,
		Quantity:  quantity,
		Side:      side,
	}, nil
}

func (n *Normalizer) normalizeDepth(payload []byte, stream string) (*core.BookUpdate, error) {
	pair := pairFromStream(stream)
	if pair == "" {
		return nil, fmt.Errorf("depth event without stream name, cannot resolve pair")
	}

	var ev depthEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("malformed depth event: %w", err)
	}

	bids, err := parseLevels(ev.Bids)
	if err != nil {
		return nil, fmt.Errorf("bad bid levels: %w", err)
	}
	asks, err := parseLevels(ev.Asks)
	if err != nil {
		return nil, fmt.Errorf("bad ask levels: %w", err)
	}

	return &core.BookUpdate{
		Timestamp: time.Now().UTC(),
		Exchange:  n.exchange,
		Pair:      pair,
		Bids:      bids,
		Asks:      asks,
	}, nil
}

func parseLevels(raw [][]string) ([]core.PriceLevel, error) {
	levels := make([]core.PriceLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			return nil, fmt.Errorf("level needs price and quantity, got %v", l)
		}
		price, err := decimal.NewFromString(l[0])
		if err != nil {
			return nil, err
		}
		quantity, err := decimal.NewFromString(l[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, core.PriceLevel{Price: price, Quantity: quantity})
	}
	return levels, nil
}

// pairFromStream turns "ethbtc@depth5@100ms" into "ETHBTC".
func pairFromStream(stream string) string {
	if stream == "" {
		return ""
	}
	name, _, _ := strings.Cut(stream, "@")
	return strings.ToUpper(name)
}
