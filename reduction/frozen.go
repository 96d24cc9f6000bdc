// Copyright 2025 GreonXpert
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reduction

import "time"

// ResolveFrozen returns the value of the frozen symbol for an entry at
// instant t, following the per-variable policy: constants short-circuit;
// scheduled variables look up the history record covering the UTC
// period containing t, carrying the latest earlier record forward when
// the period has no record of its own. The resolver is deterministic
// for a given (project, symbol, t).
func ResolveFrozen(p *Project, symbol string, t time.Time) (float64, error) {
	if p.M2 == nil {
		return 0, Errorf(KindFrozenVariableMissing, "project %s has no M2 configuration", p.ProjectID)
	}
	fv, ok := p.M2.FormulaRef.Variables[symbol]
	if !ok {
		return 0, Errorf(KindFrozenVariableMissing, "frozen variable %q is not configured on project %s", symbol, p.ProjectID)
	}
	if fv.Policy.IsConstant {
		return fv.Value, nil
	}

	freq := fv.Policy.Schedule.Frequency
	if freq == "" {
		freq = FreqMonthly
	}
	start := periodStart(t.UTC(), freq)
	end := periodEnd(start, freq)

	sched := fv.Policy.Schedule
	if sched.FromDate != nil && t.Before(*sched.FromDate) {
		return fv.Value, nil
	}
	if sched.ToDate != nil && t.After(*sched.ToDate) {
		if rec, ok := latestHistoryAt(fv.History, *sched.ToDate); ok {
			return rec.Value, nil
		}
		return fv.Value, nil
	}

	// A record covers the period if its [from, to] window contains the
	// period start. An open record is closed at the next record's From,
	// so a newer record always supersedes an older open one; when two
	// records still cover the same period the latest From wins.
	var match FrozenHistoryRecord
	matched := false
	for _, rec := range fv.History {
		upper := end
		if rec.To != nil {
			upper = *rec.To
		} else if next, ok := nextHistoryFrom(fv.History, rec.From); ok {
			upper = next.Add(-time.Millisecond)
		}
		if rec.From.After(start) || upper.Before(start) {
			continue
		}
		if !matched || rec.From.After(match.From) {
			match = rec
			matched = true
		}
	}
	if matched {
		return match.Value, nil
	}

	// Carry-forward: latest record that began on or before this period.
	if rec, ok := latestHistoryAt(fv.History, start); ok {
		return rec.Value, nil
	}
	return fv.Value, nil
}

// nextHistoryFrom returns the earliest From strictly after t among the
// history records, used to close open records.
func nextHistoryFrom(history []FrozenHistoryRecord, t time.Time) (time.Time, bool) {
	var next time.Time
	found := false
	for _, rec := range history {
		if !rec.From.After(t) {
			continue
		}
		if !found || rec.From.Before(next) {
			next = rec.From
			found = true
		}
	}
	return next, found
}

func latestHistoryAt(history []FrozenHistoryRecord, cutoff time.Time) (FrozenHistoryRecord, bool) {
	var best FrozenHistoryRecord
	found := false
	for _, rec := range history {
		if rec.From.After(cutoff) {
			continue
		}
		if !found || rec.From.After(best.From) {
			best = rec
			found = true
		}
	}
	return best, found
}

// periodStart floors t to the beginning of its UTC period: months to
// the 1st, quarters to months 1/4/7/10, halves to 1/7, years to Jan 1.
func periodStart(t time.Time, freq ScheduleFrequency) time.Time {
	y, m, _ := t.Date()
	switch freq {
	case FreqQuarterly:
		m = time.Month((int(m)-1)/3*3 + 1)
	case FreqSemiannual:
		if m >= time.July {
			m = time.July
		} else {
			m = time.January
		}
	case FreqYearly:
		m = time.January
	}
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// periodEnd is the last representable instant of the period: the next
// period start minus one millisecond.
func periodEnd(start time.Time, freq ScheduleFrequency) time.Time {
	var months int
	switch freq {
	case FreqQuarterly:
		months = 3
	case FreqSemiannual:
		months = 6
	case FreqYearly:
		months = 12
	default:
		months = 1
	}
	return start.AddDate(0, months, 0).Add(-time.Millisecond)
}
