package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDateID_Canonical(t *testing.T) {
	got, err := DecodeDateID("20220101")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestDecodeDateID_ISOForm(t *testing.T) {
	got, err := DecodeDateID("2022-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestDecodeDateIDInt(t *testing.T) {
	got, err := DecodeDateIDInt(20220208)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 2, 8, 0, 0, 0, 0, time.UTC), got)
}

func TestDecodeDateID_Failures(t *testing.T) {
	for _, raw := range []string{"", "42", "20221345", "not-a-date!", "2022/01/01"} {
		_, err := DecodeDateID(raw)
		require.Error(t, err, "raw=%q", raw)

		var decodeErr *DateDecodeError
		assert.True(t, errors.As(err, &decodeErr), "raw=%q should yield DateDecodeError", raw)
	}
}

func TestDiscountPeriod(t *testing.T) {
	from, to := DiscountPeriod(true, 2022)
	assert.Equal(t, time.Date(2022, 1, 12, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2022, 2, 8, 0, 0, 0, 0, time.UTC), to)

	from, to = DiscountPeriod(false, 2023)
	assert.Equal(t, time.Date(2023, 6, 22, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2023, 7, 19, 0, 0, 0, 0, time.UTC), to)
}
