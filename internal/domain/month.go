package domain

import "time"

const monthLayout = "2006-01"

// MonthLabel identifies a calendar month as "YYYY-MM" in UTC.
// It is the grouping key shared by plans, execution records and snapshots,
// so it must only ever be produced by MonthOf or ParseMonthLabel.
type MonthLabel string

// MonthOf returns the label of the UTC month containing t
func MonthOf(t time.Time) MonthLabel {
	return MonthLabel(t.UTC().Format(monthLayout))
}

// ParseMonthLabel validates s and returns it as a MonthLabel
func ParseMonthLabel(s string) (MonthLabel, error) {
	parsed, err := time.Parse(monthLayout, s)
	if err != nil {
		return "", Invalidf("invalid month label %q: %v", s, err)
	}
	return MonthLabel(parsed.Format(monthLayout)), nil
}

// String implements fmt.Stringer
func (m MonthLabel) String() string {
	return string(m)
}

// Valid reports whether the label is well formed
func (m MonthLabel) Valid() bool {
	_, err := ParseMonthLabel(string(m))
	return err == nil
}

// Start returns the first instant of the month (UTC)
func (m MonthLabel) Start() time.Time {
	t, err := time.Parse(monthLayout, string(m))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// End returns the first instant of the following month (UTC)
func (m MonthLabel) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

// Next returns the label of the following month
func (m MonthLabel) Next() MonthLabel {
	return MonthOf(m.End())
}

// Prev returns the label of the preceding month
func (m MonthLabel) Prev() MonthLabel {
	return MonthOf(m.Start().AddDate(0, -1, 0))
}

// Before reports whether m is an earlier month than other
func (m MonthLabel) Before(other MonthLabel) bool {
	return m.Start().Before(other.Start())
}

// Contains reports whether t falls inside the month
func (m MonthLabel) Contains(t time.Time) bool {
	return MonthOf(t) == m
}

// IsFirstDay reports whether t is the first day of month m
func (m MonthLabel) IsFirstDay(t time.Time) bool {
	return m.Contains(t) && t.UTC().Day() == 1
}

// IsLastDay reports whether t is the last day of month m
func (m MonthLabel) IsLastDay(t time.Time) bool {
	return m.Contains(t) && !m.Contains(t.UTC().AddDate(0, 0, 1))
}
