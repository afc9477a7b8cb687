package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency is the base repetition unit of a recurrence rule.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

const rruleUntilLayout = "20060102T150405Z"

var weekdayCodes = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// Recurrence is the structured subset of an RFC 5545 rule the platform
// understands. ByDay entries are two-letter weekday codes, optionally
// prefixed with an ordinal ("2TU", "-1FR").
type Recurrence struct {
	Frequency Frequency  `json:"frequency"`
	Interval  int        `json:"interval"`
	Count     int        `json:"count,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
	ByDay     []string   `json:"byDay,omitempty"`
}

// ParseRRule parses an RRULE line, with or without the "RRULE:" prefix.
// It returns nil for empty, malformed or sub-daily rules.
func ParseRRule(rule string) *Recurrence {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil
	}
	if i := strings.IndexByte(rule, ':'); i >= 0 {
		if !strings.EqualFold(rule[:i], "RRULE") {
			return nil
		}
		rule = rule[i+1:]
	}
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil
	}

	r := &Recurrence{Interval: opt.Interval, Count: opt.Count}
	switch opt.Freq {
	case rrule.DAILY:
		r.Frequency = FrequencyDaily
	case rrule.WEEKLY:
		r.Frequency = FrequencyWeekly
	case rrule.MONTHLY:
		r.Frequency = FrequencyMonthly
	case rrule.YEARLY:
		r.Frequency = FrequencyYearly
	default:
		return nil
	}
	if r.Interval <= 0 {
		r.Interval = 1
	}
	if !opt.Until.IsZero() {
		u := opt.Until.UTC()
		r.Until = &u
	}
	for i := range opt.Byweekday {
		wd := opt.Byweekday[i]
		code := weekdayCodes[wd.Day()]
		if n := wd.N(); n != 0 {
			code = fmt.Sprintf("%d%s", n, code)
		}
		r.ByDay = append(r.ByDay, code)
	}
	return r
}

// FindRRule returns the first parseable RRULE among provider recurrence
// lines (EXDATE/RDATE lines are skipped).
func FindRRule(lines []string) *Recurrence {
	for _, line := range lines {
		if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), "RRULE") {
			continue
		}
		if r := ParseRRule(line); r != nil {
			return r
		}
	}
	return nil
}

// Value renders the rule body without the "RRULE:" prefix.
func (r *Recurrence) Value() string {
	parts := []string{"FREQ=" + string(r.Frequency)}
	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}
	if r.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", r.Count))
	} else if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.UTC().Format(rruleUntilLayout))
	}
	if len(r.ByDay) > 0 {
		parts = append(parts, "BYDAY="+strings.Join(r.ByDay, ","))
	}
	return strings.Join(parts, ";")
}

// RRule renders the rule as an "RRULE:" line.
func (r *Recurrence) RRule() string {
	return "RRULE:" + r.Value()
}

// Equal reports whether r and o describe the same rule.
func (r *Recurrence) Equal(o *Recurrence) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Frequency != o.Frequency || max(r.Interval, 1) != max(o.Interval, 1) || r.Count != o.Count {
		return false
	}
	if (r.Until == nil) != (o.Until == nil) || (r.Until != nil && !r.Until.Equal(*o.Until)) {
		return false
	}
	if len(r.ByDay) != len(o.ByDay) {
		return false
	}
	for i := range r.ByDay {
		if !strings.EqualFold(r.ByDay[i], o.ByDay[i]) {
			return false
		}
	}
	return true
}

// RuleBody strips the "RRULE:" prefix from a recurrence line.
func RuleBody(line string) string {
	line = strings.TrimSpace(line)
	if len(line) > 6 && strings.EqualFold(line[:6], "RRULE:") {
		return line[6:]
	}
	return line
}

// RuleValue picks the rule body to write back to a provider. raw is the
// rule last read from that provider. It is kept verbatim while r still
// equals what was parsed from it, so parts Recurrence does not model
// (BYMONTH, BYSETPOS, WKST, sub-daily frequencies) are not lost. A nil r
// clears the rule, unless raw never parsed and so r could not carry it.
func RuleValue(r *Recurrence, raw string) string {
	raw = RuleBody(raw)
	parsed := ParseRRule(raw)
	if r == nil {
		if raw != "" && parsed == nil {
			return raw
		}
		return ""
	}
	if raw != "" && parsed.Equal(r) {
		return raw
	}
	return r.Value()
}

// Weekday splits a ByDay entry into its ordinal and weekday code.
func Weekday(byDay string) (int, string) {
	code := strings.ToUpper(byDay)
	if len(code) < 2 {
		return 0, ""
	}
	day := code[len(code)-2:]
	n := 0
	if prefix := code[:len(code)-2]; prefix != "" {
		if _, err := fmt.Sscanf(prefix, "%d", &n); err != nil {
			return 0, ""
		}
	}
	for _, known := range weekdayCodes {
		if day == known {
			return n, day
		}
	}
	return 0, ""
}
