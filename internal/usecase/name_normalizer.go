package usecase

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// Hyphens and underscores separate words the same way spaces do
	separatorPattern = regexp.MustCompile(`[-_]+`)

	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeName folds a product title or pricing item name into the form names are compared in:
// NFKC, lowercased, '-' and '_' read as spaces, whitespace collapsed and trimmed.
func NormalizeName(name string) string {
	s := norm.NFKC.String(name)
	s = strings.ToLower(s)
	s = separatorPattern.ReplaceAllString(s, " ")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
