package enroll

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

var (
	lower = cases.Lower(language.Und)
	upper = cases.Upper(language.Und)
)

// NormalizeName upper-cases the first letter and lower-cases the rest,
// so "mATH" and "math" both become "Math".
func NormalizeName(s string) string {
	s = lower.String(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	_, size := utf8.DecodeRuneInString(s)
	return upper.String(s[:size]) + s[size:]
}

// IsReserved reports whether name would collide with the label of
// unmatched faces once normalised.
func IsReserved(name string) bool {
	return NormalizeName(name) == domain.Unknown
}
