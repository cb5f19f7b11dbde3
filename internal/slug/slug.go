// Package slug derives URL-safe identifiers from post titles.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	lowerUpper   = regexp.MustCompile(`([a-z\d])([A-Z])`)
	acronymUpper = regexp.MustCompile(`([A-Z]+)([A-Z][a-z\d]+)`)
	nonAlnum     = regexp.MustCompile(`[^a-z0-9]+`)
)

var replacements = strings.NewReplacer(
	"&", " and ",
	"ß", "ss",
	"æ", "ae",
	"Æ", "AE",
	"ø", "o",
	"Ø", "O",
	"đ", "d",
	"Đ", "D",
	"ł", "l",
	"Ł", "L",
)

// Make returns a lowercase, hyphen separated slug for title.
// Diacritics are folded, other scripts are transliterated to ASCII,
// camelCase words are split and anything that is not a letter or digit
// becomes a single hyphen. Titles with no transliterable characters,
// such as emoji only, yield "".
func Make(title string) string {
	s := replacements.Replace(title)
	s = foldDiacritics(s)
	s = unidecode.Unidecode(s)
	s = lowerUpper.ReplaceAllString(s, "$1 $2")
	s = acronymUpper.ReplaceAllString(s, "$1 $2")
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
