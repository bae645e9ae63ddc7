// Package record defines the normalized ticker Record and its line
// serializer. A Record is immutable-after-construction except for its two
// EMA fields, which the Compute stage alone is permitted to set.
package record

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotTicker is returned by FromDecoded when the decoded frame is not a
// ticker event, or is missing a field the pipeline cannot operate without.
var ErrNotTicker = errors.New("record: not a ticker event")

// Record is one decoded ticker event, enriched in place by the Compute
// stage. Transport fields are read-only once Ingress has built the Record;
// only PriceEMA and MidPriceEMA are written afterward, and only by Compute.
type Record struct {
	Type      string
	Sequence  string
	ProductID string
	Side      string
	Time      string
	TradeID   string

	Price      string
	Open24h    string
	Volume24h  string
	Low24h     string
	High24h    string
	Volume30d  string
	BestBid    string
	BestAsk    string
	LastSize   string

	MidPrice float64

	PriceEMA    float64
	MidPriceEMA float64

	EventTime time.Time
}

// FromDecoded constructs a Record from a decoded frame's key/value map.
// Returns ErrNotTicker if type is absent or not "ticker", or if product_id
// or price is missing. Missing optional fields default to "". Numeric
// values may arrive as either a JSON number or a string token; numbers are
// stringified so the transport contract preserves exact text downstream.
func FromDecoded(m map[string]any) (*Record, error) {
	typ, _ := stringField(m, "type")
	if typ != "ticker" {
		return nil, fmt.Errorf("%w: type=%q", ErrNotTicker, typ)
	}

	productID, hasProduct := stringField(m, "product_id")
	price, hasPrice := stringField(m, "price")
	if !hasProduct || !hasPrice {
		return nil, fmt.Errorf("%w: missing product_id or price", ErrNotTicker)
	}

	r := &Record{
		Type:      typ,
		ProductID: productID,
		Price:     price,
	}
	r.Sequence, _ = stringField(m, "sequence")
	r.Side, _ = stringField(m, "side")
	r.Time, _ = stringField(m, "time")
	r.TradeID, _ = stringField(m, "trade_id")
	r.Open24h, _ = stringField(m, "open_24h")
	r.Volume24h, _ = stringField(m, "volume_24h")
	r.Low24h, _ = stringField(m, "low_24h")
	r.High24h, _ = stringField(m, "high_24h")
	r.Volume30d, _ = stringField(m, "volume_30d")
	r.BestBid, _ = stringField(m, "best_bid")
	r.BestAsk, _ = stringField(m, "best_ask")
	r.LastSize, _ = stringField(m, "last_size")

	r.MidPrice = r.MidPriceFromFields()
	r.EventTime = parseEventTime(r.Time)

	return r, nil
}

// MidPriceFromFields computes (best_bid + best_ask) / 2, returning 0 if
// either field fails to parse. Parsing goes through shopspring/decimal so
// that malformed or unusually-formatted decimal-string tokens from the feed
// (thousands separators aside) are rejected the same way regardless of
// float64's text-parsing quirks; the result is then narrowed to float64 to
// match the rest of the pipeline's real-valued arithmetic (spec's Open
// Questions §9 explicitly permit IEEE-754 throughout).
func (r *Record) MidPriceFromFields() float64 {
	bid, err := decimal.NewFromString(r.BestBid)
	if err != nil {
		return 0
	}
	ask, err := decimal.NewFromString(r.BestAsk)
	if err != nil {
		return 0
	}
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	f, _ := mid.Float64()
	return f
}

// columns is the fixed field order for the header row and every data row.
// It matches spec §6's external file-format contract exactly, which is not
// the same order as the field list in spec §3.
var columns = []string{
	"type", "sequence", "product_id", "price", "open_24h", "volume_24h",
	"low_24h", "high_24h", "volume_30d", "best_bid", "best_ask", "side",
	"time", "trade_id", "last_size", "price_ema", "mid_price_ema", "mid_price",
}

// Header returns the CSV header line, without trailing newline.
func Header() string {
	return writeCSVLine(columns)
}

// ToRow renders the Record as a single CSV line (no trailing newline). Field
// order matches Header(). The three real-valued fields are formatted with
// eight fractional digits; any field containing a comma, double quote, or
// newline is quoted per RFC 4180.
func (r *Record) ToRow() string {
	fields := []string{
		r.Type, r.Sequence, r.ProductID, r.Price, r.Open24h, r.Volume24h,
		r.Low24h, r.High24h, r.Volume30d, r.BestBid, r.BestAsk, r.Side,
		r.Time, r.TradeID, r.LastSize,
		strconv.FormatFloat(r.PriceEMA, 'f', 8, 64),
		strconv.FormatFloat(r.MidPriceEMA, 'f', 8, 64),
		strconv.FormatFloat(r.MidPrice, 'f', 8, 64),
	}
	return writeCSVLine(fields)
}

// writeCSVLine renders fields as one RFC 4180 line without a trailing
// newline. encoding/csv is the stdlib choice here: no library in the
// example corpus offers CSV serialization, so this is a justified
// standard-library use (see DESIGN.md).
func writeCSVLine(fields []string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(fields)
	w.Flush()
	out := buf.String()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

// parseEventTime parses an ISO-8601 timestamp (trailing Z optional),
// falling back to the current wall clock on parse failure.
func parseEventTime(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
