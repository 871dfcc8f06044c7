// Package accesslevel defines the disclosure tier hierarchy and its ordering.
// Every comparison between tiers in the codebase goes through this package;
// the order is encoded exactly once, in the levels slice below.
package accesslevel

// Level is a disclosure tier. Tiers form a total order by confidentiality:
// public < teaser < cim < financials < full.
type Level string

const (
	Public     Level = "public"
	Teaser     Level = "teaser"
	CIM        Level = "cim"
	Financials Level = "financials"
	Full       Level = "full"
)

// levels holds the tiers in ascending disclosure order. Rank is the index
// into this slice; comparison is always by index, never by name.
var levels = []Level{Public, Teaser, CIM, Financials, Full}

// Rank returns the position of a level in the hierarchy, or -1 for an
// unknown level. An unknown level therefore never satisfies anything.
func Rank(l Level) int {
	for i, candidate := range levels {
		if candidate == l {
			return i
		}
	}
	return -1
}

// Satisfies reports whether an effective level grants access to content
// tagged with the required level.
func Satisfies(effective, required Level) bool {
	effRank := Rank(effective)
	reqRank := Rank(required)
	if effRank < 0 || reqRank < 0 {
		return false
	}
	return effRank >= reqRank
}

// Valid reports whether l is one of the five known tiers.
func Valid(l Level) bool {
	return Rank(l) >= 0
}

// Levels returns the tiers in ascending disclosure order.
func Levels() []Level {
	result := make([]Level, len(levels))
	copy(result, levels)
	return result
}

// Max returns the higher-ranked of two levels.
func Max(a, b Level) Level {
	if Rank(a) >= Rank(b) {
		return a
	}
	return b
}

// Cap returns the lower-ranked of two levels, used to apply a ceiling.
func Cap(l, ceiling Level) Level {
	if Rank(l) > Rank(ceiling) {
		return ceiling
	}
	return l
}
