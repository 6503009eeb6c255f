package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "orderflow/internal/errors"
)

func TestTimeframeDurations(t *testing.T) {
	for i, tf := range Timeframes {
		assert.True(t, tf.Valid(), tf)
		if i > 0 {
			assert.Greater(t, tf.Duration(), Timeframes[i-1].Duration())
		}
	}
	assert.Equal(t, int64(60_000), Timeframe1m.Milliseconds())
	assert.Equal(t, int64(86_400), Timeframe1d.Seconds())
	assert.Equal(t, time.Duration(0), Timeframe("2m").Duration())
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe(" 15m ")
	require.NoError(t, err)
	assert.Equal(t, Timeframe15m, tf)

	_, err = ParseTimeframe("1w")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnknownTimeframe))
}

func TestTradeKey(t *testing.T) {
	tr := Trade{TimestampMs: 1000, Price: 100.5, Quantity: 2, Side: SideSell}
	assert.Equal(t, "1000-sell-100.5-2", tr.Key())
	assert.Equal(t, int64(1000), tr.Time().UnixMilli())
}
