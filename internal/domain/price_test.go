package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expected      float64
		expectedError bool
	}{
		{
			name:     "integer",
			input:    "39",
			expected: 39,
		},
		{
			name:     "decimal with whitespace",
			input:    "  39.90 \n",
			expected: 39.9,
		},
		{
			name:     "zero",
			input:    "0",
			expected: 0,
		},
		{
			name:          "not a number",
			input:         "forty",
			expectedError: true,
		},
		{
			name:          "comma decimal separator",
			input:         "39,90",
			expectedError: true,
		},
		{
			name:          "negative",
			input:         "-1",
			expectedError: true,
		},
		{
			name:          "NaN",
			input:         "NaN",
			expectedError: true,
		},
		{
			name:     "largest price",
			input:    "9999999999.99",
			expected: 9999999999.99,
		},
		{
			name:          "too large",
			input:         "99999999999.99",
			expectedError: true,
		},
		{
			name:          "exponent",
			input:         "1e15",
			expectedError: true,
		},
		{
			name:          "small exponent",
			input:         "1e3",
			expectedError: true,
		},
		{
			name:          "hex float",
			input:         "0x1p4",
			expectedError: true,
		},
		{
			name:          "Inf",
			input:         "Inf",
			expectedError: true,
		},
		{
			name:          "explicit plus sign",
			input:         "+5",
			expectedError: true,
		},
		{
			name:          "empty",
			input:         "",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := ParsePrice(tt.input)
			if tt.expectedError {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			assert.NoError(t, err)
			assert.InDelta(t, tt.expected, price, 0.0001)
		})
	}
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "₪39.00", FormatPrice(39))
	assert.Equal(t, "₪2490.50", FormatPrice(2490.5))
}

func TestCard_Label(t *testing.T) {
	card := Card{Title: "Card1", Price: 39}
	assert.Equal(t, "Card1 — ₪39.00", card.Label())
}

func TestPurchasePolicy_Valid(t *testing.T) {
	assert.True(t, PurchaseInstant.Valid())
	assert.True(t, PurchaseScreenshot.Valid())
	assert.False(t, PurchasePolicy("manual").Valid())
}

func TestPlan_MaxItems(t *testing.T) {
	assert.Equal(t, 3, PlanFull.MaxItems())
	assert.Equal(t, 1, PlanSingle.MaxItems())
	assert.Equal(t, 1, Plan("").MaxItems())
}
