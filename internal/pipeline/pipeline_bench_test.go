package pipeline

import (
	"testing"

	"github.com/shopspring/decimal"

	"pair_trader/internal/risk"
)

func BenchmarkOnTick_Throughput(b *testing.B) {
	p := newTestPipeline(b, Config{}, risk.Config{}, nil, nil)
	warm(p, 50)

	btc := decimal.NewFromInt(50000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.OnTick(tick("BTCUSDT", btc))
	}
}

func BenchmarkOnTick_CrossLeg(b *testing.B) {
	p := newTestPipeline(b, Config{}, risk.Config{}, nil, nil)
	warm(p, 50)

	cross := decimal.NewFromFloat(0.06)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.OnTick(tick("ETHBTC", cross))
	}
}
