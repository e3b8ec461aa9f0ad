// Package textnorm canonicalizes free text coming from keyboards and from
// historical workbook cells, so lookups and comparisons are stable no matter
// which variant was typed.
package textnorm

import (
	"regexp"
	"strings"
)

// folds visually identical Arabic code points to their Persian forms and
// Eastern Arabic-Indic digits to ASCII
var folder = strings.NewReplacer(
	"ي", "ی", // Arabic yeh -> Persian yeh
	"ك", "ک", // Arabic kaf -> Persian keh
	"ة", "ه", // teh marbuta -> heh
	"ۀ", "ه", // heh with yeh above -> heh
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
)

var spaceRun = regexp.MustCompile(`\s+`)

// Normalize folds Arabic letter variants to Persian, folds Eastern digits to
// ASCII, collapses whitespace runs to a single space and trims the result.
// It is pure and idempotent; empty input stays empty.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = folder.Replace(s)
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
