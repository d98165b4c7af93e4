// Package excelx holds the spreadsheet plumbing shared by the import and
// export paths: header-variant resolution, Persian digit and character
// normalization, and Jalali date conversion at the I/O boundary.
package excelx

import "strings"

var digitReplacer = strings.NewReplacer(
	// Extended Arabic-Indic (Persian keyboards)
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	// Arabic-Indic (legacy sheets exported from Arabic locales)
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

var persianReplacer = strings.NewReplacer(
	"ي", "ی", // Arabic Yeh -> Farsi Yeh
	"ك", "ک", // Arabic Kaf -> Keheh
	"‌", " ", // ZWNJ
	" ", " ",
)

// NormalizeDigits maps Persian and Arabic-Indic digits to ASCII.
func NormalizeDigits(s string) string {
	return digitReplacer.Replace(s)
}

// NormalizeText folds Arabic letter variants to their Farsi forms and
// collapses whitespace, so header matching survives typist variation.
func NormalizeText(s string) string {
	s = NormalizeDigits(persianReplacer.Replace(s))
	return strings.Join(strings.Fields(s), " ")
}

// DigitsOnly strips every non-ASCII-digit rune after digit normalization.
// Used for national IDs, postal codes and phone numbers.
func DigitsOnly(s string) string {
	s = NormalizeDigits(s)
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
