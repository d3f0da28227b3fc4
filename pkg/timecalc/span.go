package timecalc

import (
	"fmt"
	"strconv"
	"strings"
)

// Span is a signed combination of calendar units parsed from a schedule
// duration expression such as "3 years - 4 days" or "16 weeks + 4 days".
type Span struct {
	Years  int
	Months int
	Weeks  int
	Days   int
}

// ParseSpan parses a duration expression: one or more "<n> <unit>" terms
// joined by "+" or "-", units being year/month/week/day with optional
// plural. The empty string is not a valid span.
func ParseSpan(s string) (Span, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return Span{}, fmt.Errorf("timecalc: empty duration expression")
	}

	var span Span
	sign := 1
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "+":
			sign = 1
			continue
		case "-":
			sign = -1
			continue
		}

		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return Span{}, fmt.Errorf("timecalc: bad duration term %q in %q", fields[i], s)
		}
		i++
		if i >= len(fields) {
			return Span{}, fmt.Errorf("timecalc: missing unit after %d in %q", n, s)
		}

		switch strings.TrimSuffix(fields[i], "s") {
		case "year":
			span.Years += sign * n
		case "month":
			span.Months += sign * n
		case "week":
			span.Weeks += sign * n
		case "day":
			span.Days += sign * n
		default:
			return Span{}, fmt.Errorf("timecalc: unknown unit %q in %q", fields[i], s)
		}
	}
	return span, nil
}

// MustSpan is a test and fixture helper; it panics on parse failure.
func MustSpan(s string) Span {
	sp, err := ParseSpan(s)
	if err != nil {
		panic(err)
	}
	return sp
}

// IsZero reports whether every unit of the span is zero.
func (sp Span) IsZero() bool {
	return sp == Span{}
}

// AddTo applies the span to a date, years and months first, then weeks and
// days, matching how schedule age offsets compose.
func (sp Span) AddTo(d Date) Date {
	return d.AddDate(sp.Years, sp.Months, 0).AddDate(0, 0, 7*sp.Weeks+sp.Days)
}

// SubtractFrom applies the negated span to a date.
func (sp Span) SubtractFrom(d Date) Date {
	neg := Span{Years: -sp.Years, Months: -sp.Months, Weeks: -sp.Weeks, Days: -sp.Days}
	return neg.AddTo(d)
}

func (sp Span) String() string {
	var parts []string
	add := func(n int, unit string) {
		if n == 0 {
			return
		}
		if n == 1 || n == -1 {
			parts = append(parts, fmt.Sprintf("%d %s", n, unit))
			return
		}
		parts = append(parts, fmt.Sprintf("%d %ss", n, unit))
	}
	add(sp.Years, "year")
	add(sp.Months, "month")
	add(sp.Weeks, "week")
	add(sp.Days, "day")
	if len(parts) == 0 {
		return "0 days"
	}
	return strings.Join(parts, " + ")
}
