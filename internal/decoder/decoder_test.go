package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame_ParsesObject(t *testing.T) {
	fields, err := DecodeFrame([]byte(`{"type":"ticker","product_id":"BTC-USD","price":"50000.00"}`))
	require.NoError(t, err)
	assert.Equal(t, "ticker", fields["type"])
	assert.Equal(t, "BTC-USD", fields["product_id"])
}

func TestDecodeFrame_RejectsMalformedJSON(t *testing.T) {
	_, err := DecodeFrame([]byte(`{not json`))
	assert.Error(t, err)
}
