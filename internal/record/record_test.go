package record

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tickerFrame(overrides map[string]any) map[string]any {
	base := map[string]any{
		"type":       "ticker",
		"sequence":   "42",
		"product_id": "BTC-USD",
		"side":       "buy",
		"time":       "2026-07-31T12:00:00.000000Z",
		"trade_id":   "123",
		"price":      "50000.00",
		"open_24h":   "49000.00",
		"volume_24h": "1000.0",
		"low_24h":    "48000.00",
		"high_24h":   "51000.00",
		"volume_30d": "30000.0",
		"best_bid":   "49999.00",
		"best_ask":   "50001.00",
		"last_size":  "0.5",
	}
	for k, v := range overrides {
		base[k] = v
	}
	return base
}

func TestFromDecoded_RejectsNonTicker(t *testing.T) {
	_, err := FromDecoded(tickerFrame(map[string]any{"type": "snapshot"}))
	require.ErrorIs(t, err, ErrNotTicker)
}

func TestFromDecoded_RejectsMissingProductID(t *testing.T) {
	frame := tickerFrame(nil)
	delete(frame, "product_id")
	_, err := FromDecoded(frame)
	require.ErrorIs(t, err, ErrNotTicker)
}

func TestFromDecoded_RejectsMissingPrice(t *testing.T) {
	frame := tickerFrame(nil)
	delete(frame, "price")
	_, err := FromDecoded(frame)
	require.ErrorIs(t, err, ErrNotTicker)
}

func TestFromDecoded_PopulatesTransportFields(t *testing.T) {
	r, err := FromDecoded(tickerFrame(nil))
	require.NoError(t, err)
	assert.Equal(t, "ticker", r.Type)
	assert.Equal(t, "BTC-USD", r.ProductID)
	assert.Equal(t, "50000.00", r.Price)
	assert.Equal(t, "123", r.TradeID)
}

func TestMidPriceFromFields_AveragesBidAsk(t *testing.T) {
	r, err := FromDecoded(tickerFrame(nil))
	require.NoError(t, err)
	assert.InDelta(t, 50000.0, r.MidPrice, 0.00000001)
}

func TestMidPriceFromFields_ZeroOnUnparsableField(t *testing.T) {
	r, err := FromDecoded(tickerFrame(map[string]any{"best_bid": "not-a-number"}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.MidPrice)
}

func TestToRow_FieldCountAndOrder(t *testing.T) {
	r, err := FromDecoded(tickerFrame(nil))
	require.NoError(t, err)
	r.PriceEMA = 50000.123456789
	r.MidPriceEMA = 50000.00000001

	row := r.ToRow()
	fields := strings.Split(row, ",")
	require.Len(t, fields, 18, "row must have exactly 18 fields (17 commas)")
	assert.Equal(t, "ticker", fields[0])
	assert.Equal(t, "BTC-USD", fields[2])
	assert.Equal(t, "50000.00", fields[3])
	assert.Equal(t, "50000.12345679", fields[15], "price_ema formatted to 8 fractional digits")
}

func TestToRow_QuotesCommaAndEscapesQuote(t *testing.T) {
	r, err := FromDecoded(tickerFrame(map[string]any{
		"product_id": "BTC,USD",
		"side":       `buy"sell`,
	}))
	require.NoError(t, err)

	row := r.ToRow()
	assert.Contains(t, row, `"BTC,USD"`)
	assert.Contains(t, row, `"buy""sell"`)
}

func TestHeader_MatchesRowFieldCount(t *testing.T) {
	header := Header()
	assert.Len(t, strings.Split(header, ","), 18)
}
