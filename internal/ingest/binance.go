package ingest

import (
	"strings"

	"pair_trader/internal/core"
	"pair_trader/pkg/websocket"
)

const defaultStreamURL = "wss://stream.binance.com:9443/stream"

// Sink receives normalized events, one at a time.
type Sink interface {
	OnTick(tick *core.MarketTick)
	OnBook(book *core.BookUpdate)
}

// Config holds ingestor settings
type Config struct {
	URL   string
	Pairs []string
}

// Ingestor subscribes to trade and shallow-depth streams for the
// configured pairs and feeds normalized events into the sink. Reconnects
// resubscribe from scratch; there is no sequence-gap recovery.
type Ingestor struct {
	client *websocket.Client
	norm   *Normalizer
	sink   Sink
	pairs  []string
	logger core.ILogger
}

func NewIngestor(cfg Config, sink Sink, logger core.ILogger) *Ingestor {
	if cfg.URL == "" {
		cfg.URL = defaultStreamURL
	}
	i := &Ingestor{
		norm:   NewNormalizer("binance"),
		sink:   sink,
		pairs:  cfg.Pairs,
		logger: logger.WithField("component", "ingestor"),
	}
	i.client = websocket.NewClient(cfg.URL, i.handleMessage, i.logger)
	i.client.SetOnConnected(i.subscribe)
	return i
}

// Streams returns the stream names this ingestor subscribes to.
func (i *Ingestor) Streams() []string {
	streams := make([]string, 0, 2*len(i.pairs))
	for _, pair := range i.pairs {
		name := strings.ToLower(pair)
		streams = append(streams, name+"@trade", name+"@depth5@100ms")
	}
	return streams
}

func (i *Ingestor) subscribe() {
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": i.Streams(),
		"id":     1,
	}
	if err := i.client.Send(msg); err != nil {
		i.logger.Error("Failed to send subscription", "error", err)
		return
	}
	i.logger.Info("Subscribed to market streams", "pairs", strings.Join(i.pairs, ","))
}

func (i *Ingestor) handleMessage(message []byte) {
	tick, book, err := i.norm.Normalize(message)
	if err != nil {
		i.logger.Warn("Dropping unparseable message", "error", err)
		return
	}
	switch {
	case tick != nil:
		i.sink.OnTick(tick)
	case book != nil:
		i.sink.OnBook(book)
	}
}

// Connected reports whether the stream connection is currently up.
func (i *Ingestor) Connected() bool {
	return i.client.IsConnected()
}

// Start begins the connect/read/reconnect loop.
func (i *Ingestor) Start() {
	i.client.Start()
}

// Stop closes the stream connection.
func (i *Ingestor) Stop() {
	i.client.Stop()
}
