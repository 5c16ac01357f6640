// Package period enumerates the fiscal (year, quarter) identifiers under which
// the SEC publishes its Financial Statement and Notes archives.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a (year, quarter) filing period, e.g. 2019 Q3.
type Period struct {
	Year    int
	Quarter int
}

// QuarterOf returns the calendar quarter (1-4) containing t.
func QuarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// Enumerate returns every period from Q1 of startYear through the quarter
// containing today, in chronological order.
func Enumerate(startYear int, today time.Time) []Period {
	endYear, endQuarter := today.Year(), QuarterOf(today)
	if startYear > endYear {
		return nil
	}
	out := make([]Period, 0, (endYear-startYear)*4+endQuarter)
	for y := startYear; y < endYear; y++ {
		for q := 1; q <= 4; q++ {
			out = append(out, Period{Year: y, Quarter: q})
		}
	}
	for q := 1; q <= endQuarter; q++ {
		out = append(out, Period{Year: endYear, Quarter: q})
	}
	return out
}

// Valid reports whether the quarter is in range and the year is positive.
func (p Period) Valid() bool {
	return p.Year > 0 && p.Quarter >= 1 && p.Quarter <= 4
}

// Less orders periods chronologically.
func (p Period) Less(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Quarter < o.Quarter
}

// String renders the period the way the SEC names its archives ("2019q3").
func (p Period) String() string {
	return fmt.Sprintf("%dq%d", p.Year, p.Quarter)
}

// Dir is the local directory name for the period ("2019_3").
func (p Period) Dir() string {
	return fmt.Sprintf("%d_%d", p.Year, p.Quarter)
}

// ArchiveName is the file name of the period's notes archive.
func (p Period) ArchiveName() string {
	return p.String() + "_notes.zip"
}

// Parse accepts "2019q3", "2019Q3" and "2019_3".
func Parse(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var yearPart, quarterPart string
	switch {
	case strings.Contains(s, "q"):
		yearPart, quarterPart, _ = strings.Cut(s, "q")
	case strings.Contains(s, "_"):
		yearPart, quarterPart, _ = strings.Cut(s, "_")
	default:
		return Period{}, fmt.Errorf("invalid period %q: want YYYYqN or YYYY_N", s)
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period year in %q: %w", s, err)
	}
	quarter, err := strconv.Atoi(quarterPart)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period quarter in %q: %w", s, err)
	}
	p := Period{Year: year, Quarter: quarter}
	if !p.Valid() {
		return Period{}, fmt.Errorf("invalid period %q: quarter must be 1-4", s)
	}
	return p, nil
}

// ParseAll parses each identifier, failing on the first invalid one.
func ParseAll(ids []string) ([]Period, error) {
	out := make([]Period, 0, len(ids))
	for _, id := range ids {
		p, err := Parse(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
