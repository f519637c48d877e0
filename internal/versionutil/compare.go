package versionutil

import "strings"

// Ordering is the result of comparing two versions.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "equal"
	}
}

// Compare orders two dotted version strings segment by segment. Numeric
// segments compare as integers ("10.0" > "9.0"), missing trailing segments
// count as zero ("1.0" == "1.0.0") and a segment without a leading digit
// sorts below any numeric one. Malformed input never fails.
func Compare(a, b string) Ordering {
	as := strings.Split(strings.TrimSpace(a), ".")
	bs := strings.Split(strings.TrimSpace(b), ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var sa, sb string
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}
		if c := compareSegment(parseSegment(sa), parseSegment(sb)); c != Equal {
			return c
		}
	}
	return Equal
}

// IsOlder reports whether a is strictly older than b. An empty operand is
// unknown, and unknown is never older.
func IsOlder(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return Compare(a, b) == Less
}

// IsAtLeast reports whether a >= b. Empty operands yield false.
func IsAtLeast(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return Compare(a, b) != Less
}

type segment struct {
	numeric bool
	digits  string // leading digits, leading zeros stripped
	rest    string // suffix after digits, or the whole segment when non-numeric
}

func parseSegment(s string) segment {
	s = strings.TrimSpace(s)
	if s == "" {
		return segment{numeric: true, digits: "0"}
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return segment{rest: s}
	}
	digits := strings.TrimLeft(s[:i], "0")
	if digits == "" {
		digits = "0"
	}
	return segment{numeric: true, digits: digits, rest: s[i:]}
}

func compareSegment(a, b segment) Ordering {
	switch {
	case a.numeric && !b.numeric:
		return Greater
	case !a.numeric && b.numeric:
		return Less
	case !a.numeric && !b.numeric:
		return ordering(strings.Compare(a.rest, b.rest))
	}
	// Digit strings have no leading zeros, so length decides first and
	// arbitrarily long components never overflow.
	if len(a.digits) != len(b.digits) {
		if len(a.digits) < len(b.digits) {
			return Less
		}
		return Greater
	}
	if c := strings.Compare(a.digits, b.digits); c != 0 {
		return ordering(c)
	}
	switch {
	case a.rest == b.rest:
		return Equal
	case a.rest == "":
		return Greater
	case b.rest == "":
		return Less
	}
	return ordering(strings.Compare(a.rest, b.rest))
}

func ordering(c int) Ordering {
	switch {
	case c < 0:
		return Less
	case c > 0:
		return Greater
	}
	return Equal
}
