package orders

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatOrderNumber(t *testing.T) {
	created := time.Date(2026, 3, 7, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "ORD-20260307-000042", FormatOrderNumber(42, created))
	assert.Equal(t, "ORD-20260307-000007", FormatOrderNumber(7, created))
	// Ids past six digits keep their natural width.
	assert.Equal(t, "ORD-20260307-1234567", FormatOrderNumber(1234567, created))
}

func TestFormatOrderNumber_DateIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 01:30 on the 8th in UTC+9 is still the 7th in UTC.
	created := time.Date(2026, 3, 8, 1, 30, 0, 0, loc)
	assert.Equal(t, "ORD-20260307-000007", FormatOrderNumber(7, created))
}

func TestPlaceholderNumber_Unique(t *testing.T) {
	a, b := placeholderNumber(), placeholderNumber()
	assert.True(t, strings.HasPrefix(a, "TMP-"))
	assert.NotEqual(t, a, b)
}
