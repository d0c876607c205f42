package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12,345", 1235, false},
		{"0.005", 1, false},
		{"-5", -500, false},
		{" 100 ", 10000, false},
		{"100.01", 10001, false},
		{"", 0, true},
		{"abc", 0, true},
		{"1e30", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Cents)
		})
	}
}

func TestParseAmountRejectsNonPositive(t *testing.T) {
	for _, in := range []string{"0", "-1", "0.00"} {
		_, err := ParseAmount(in)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
	m, err := ParseAmount("0.01")
	require.NoError(t, err)
	assert.Equal(t, Cents(1), m)
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "12.30", Cents(1230).String())
	assert.Equal(t, "-0.05", Cents(-5).String())
	assert.Equal(t, "0.00", Zero.String())
}

func TestMoneyArithmeticHasNoDrift(t *testing.T) {
	// 0.10 added ten times must be exactly 1.00.
	sum := Zero
	for range 10 {
		sum = sum.Add(Cents(10))
	}
	assert.Equal(t, Cents(100), sum)
	assert.Equal(t, Zero, sum.Sub(Cents(100)))
	assert.Equal(t, Cents(5), Cents(-5).Abs())
}

func TestMoneyPercent(t *testing.T) {
	assert.Equal(t, 50.0, Cents(50).Percent(Cents(100)))
	assert.Equal(t, 200.01, Cents(20001).Percent(Cents(10000)))
	assert.Equal(t, 0.0, Cents(50).Percent(Zero))
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Cents(1999))
	require.NoError(t, err)
	assert.JSONEq(t, `"19.99"`, string(b))

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`"19.99"`), &m))
	assert.Equal(t, Cents(1999), m)
	require.NoError(t, json.Unmarshal([]byte(`42.5`), &m))
	assert.Equal(t, Cents(4250), m)
	assert.Error(t, json.Unmarshal([]byte(`"x"`), &m))
}
