package chdata

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel strings that filings use for "no value". These normalize to a
// null decimal, never to zero.
var amountSentinels = map[string]bool{
	"":    true,
	"-":   true,
	"N/A": true,
}

// NormalizeAmount converts raw filing text into an exact decimal.
//
// Thousands separators and surrounding whitespace are stripped before
// parsing. Sentinel strings ("", "-", "N/A") yield an invalid NullDecimal
// with a nil error; any other non-numeric content yields an invalid
// NullDecimal together with a conversion error for the caller to log.
//
// A sign marker of "-" negates the parsed magnitude. This models the inline
// XBRL presentation convention where the fact's sign is inverted by an
// attribute independent of any leading minus in the text. Any other marker
// value leaves the sign untouched.
func NormalizeAmount(raw, sign string) (decimal.NullDecimal, error) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	if amountSentinels[cleaned] {
		return decimal.NullDecimal{}, nil
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("cannot convert %q to decimal: %w", raw, err)
	}

	if sign == "-" {
		d = d.Neg()
	}

	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanCellText normalizes text extracted from a document node: non-breaking
// spaces become regular spaces, runs of whitespace collapse to one space, and
// the result is trimmed.
func CleanCellText(text string) string {
	text = strings.ReplaceAll(text, " ", " ")
	text = strings.ReplaceAll(text, "​", "")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
