package excelx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseJalaliRoundTrip(t *testing.T) {
	got, err := ParseJalali("1403/01/15")
	require.NoError(t, err)
	require.Equal(t, "1403/01/15", FormatJalali(got))

	// Persian digits and dash separators are accepted.
	got, err = ParseJalali("۱۴۰۲-۱۲-۲۹")
	require.NoError(t, err)
	require.Equal(t, "1402/12/29", FormatJalali(got))
}

func TestParseJalaliRejectsOutOfRange(t *testing.T) {
	for _, input := range []string{
		"1403/13/01", // month
		"1403/00/10",
		"1403/05/32", // day
		"1200/01/01", // year sanity bound
		"1403/01",    // shape
		"not a date",
		"",
	} {
		_, err := ParseJalali(input)
		require.Error(t, err, "input %q", input)
	}
}

func TestFormatJalaliZeroTime(t *testing.T) {
	require.Equal(t, "", FormatJalali(time.Time{}))
}
