package excelx

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
)

// BadDateError reports a Jalali date cell that could not be parsed.
type BadDateError struct {
	Input string
}

func (e *BadDateError) Error() string {
	return fmt.Sprintf("excelx: invalid jalali date %q, expected YYYY/MM/DD", e.Input)
}

// ParseJalali parses a YYYY/MM/DD Jalali date (Persian or ASCII digits) into
// a Gregorian time in the Iran zone. Month must be 1-12 and day 1-31; the
// day is not cross-checked against the specific month.
func ParseJalali(s string) (time.Time, error) {
	raw := strings.TrimSpace(NormalizeDigits(s))
	raw = strings.ReplaceAll(raw, "-", "/")
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return time.Time{}, &BadDateError{Input: s}
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, &BadDateError{Input: s}
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, &BadDateError{Input: s}
	}
	day, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return time.Time{}, &BadDateError{Input: s}
	}
	if year < 1300 || year > 1500 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, &BadDateError{Input: s}
	}
	pt := ptime.Date(year, ptime.Month(month), day, 0, 0, 0, 0, ptime.Iran())
	return pt.Time(), nil
}

// FormatJalali renders a Gregorian time as a YYYY/MM/DD Jalali string.
func FormatJalali(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return ptime.New(t.In(ptime.Iran())).Format("yyyy/MM/dd")
}
