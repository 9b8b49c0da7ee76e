package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reUnit = regexp.MustCompile(`(?i)(шт|штук|pcs|pc|м\.?|метр|kg|кг|уп\.?|компл\.?)`)
	// Last number wins: request lines tend to end with the quantity
	// while dimension specs (3х2.5) come earlier.
	reNumber      = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:[\s.,]\d{3})+|\d+(?:[.,]\d+)?)`)
	reNumberUnit  = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:[\s.,]\d{3})+|\d+(?:[.,]\d+)?)\s*(шт|штук|pcs|pc|м\.?|метр|kg|кг|уп\.?|компл\.?)`)
	reDotGroups   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	reCommaGroups = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

// ParsedQty is the quantity/unit parse of one request line. QtyRaw
// keeps the matched text so callers can cut it out of the name part.
type ParsedQty struct {
	Qty    *float64
	Unit   *string
	QtyRaw *string
}

// ParseQty pulls a quantity and unit out of free text. It prefers a
// number immediately followed by a unit token, falling back to the
// last bare number. Thousands separators (space, dot, comma) and the
// decimal comma are normalized.
func ParseQty(input string) ParsedQty {
	line := strings.ReplaceAll(input, " ", " ")

	var qtyRaw, qtyToken, unitToken string
	if groups := reNumberUnit.FindAllStringSubmatch(line, -1); len(groups) > 0 {
		last := groups[len(groups)-1]
		qtyRaw = strings.TrimSpace(last[1] + " " + last[2])
		qtyToken = strings.TrimSpace(last[1])
		unitToken = last[2]
	} else if groups := reNumber.FindAllStringSubmatch(line, -1); len(groups) > 0 {
		last := groups[len(groups)-1]
		qtyRaw = strings.TrimSpace(last[1])
		qtyToken = qtyRaw
	}

	out := ParsedQty{}
	if qtyToken != "" {
		if parsed, err := strconv.ParseFloat(plainNumber(qtyToken), 64); err == nil {
			out.Qty = FloatPtr(parsed)
		}
	}
	// The unit next to the matched number wins; a lone unit token
	// elsewhere in the line is only a fallback. Scanning the whole line
	// first would trip on unit letters inside product words (the м in
	// АВТОМАТ).
	if unitToken != "" {
		out.Unit = StringPtr(canonicalUnit(unitToken))
	} else if um := reUnit.FindStringSubmatch(line); len(um) > 1 {
		out.Unit = StringPtr(canonicalUnit(um[1]))
	}
	if qtyRaw != "" {
		out.QtyRaw = StringPtr(qtyRaw)
	}
	return out
}

func canonicalUnit(unit string) string {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "шт", "штук", "pcs", "pc":
		return "шт"
	case "м", "м.", "метр":
		return "м"
	case "kg", "кг":
		return "кг"
	case "уп", "уп.":
		return "уп"
	default:
		return strings.ToLower(strings.TrimSpace(unit))
	}
}

// plainNumber rewrites a localized numeric token into strconv form:
// grouped thousands lose their separators, a lone decimal comma
// becomes a dot.
func plainNumber(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if reDotGroups.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if reCommaGroups.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
