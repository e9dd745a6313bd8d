package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetting(t *testing.T) {
	st, err := NewSetting("loan_interest_rate", " 18.5 ")
	require.NoError(t, err)
	assert.Equal(t, KeyLoanInterestRate, st.Key)
	assert.Equal(t, "18.5", st.Value)

	_, err = NewSetting("max_loan", "10")
	require.ErrorIs(t, err, ErrSettingKeyUnknown)

	for _, bad := range []string{"", "abc", "-1", "100.01", "12.345"} {
		_, err = NewSetting("loan_interest_rate", bad)
		require.ErrorIs(t, err, ErrSettingValueInvalid, bad)
	}
}

func TestParseRateKeepsTwoDecimals(t *testing.T) {
	for _, ok := range []string{"0", "15", "12.35", "12.350", "100"} {
		_, err := ParseRate(ok)
		require.NoError(t, err, ok)
	}

	_, err := ParseRate("12.345")
	require.ErrorIs(t, err, ErrSettingValueInvalid)
}
