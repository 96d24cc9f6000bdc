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

// Entry timestamps are always anchored to a fixed +05:30 offset,
// matching the offset the reporting dashboards assume.
var EntryZone = time.FixedZone("+05:30", 5*3600+30*60)

const (
	dateLayoutSlash = "02/01/2006"
	dateLayoutISO   = "2006-01-02"
	timeLayoutHM    = "15:04"
	timeLayoutHMS   = "15:04:05"
)

// ClockStamp is the canonical time triple stored on every entry.
type ClockStamp struct {
	Date      string    // DD/MM/YYYY
	Time      string    // HH:mm
	Timestamp time.Time // reconstructed from Date+Time in EntryZone
}

// NormalizeClock parses the user-supplied date and time strings and
// returns the canonical stamp. Dates are accepted as DD/MM/YYYY or
// YYYY-MM-DD, times as HH:mm or HH:mm:ss, both strict. Anything
// missing or unparseable falls back to now in EntryZone, so the
// function is total: an entry always gets a timestamp.
func NormalizeClock(date, timeOfDay string, now time.Time) ClockStamp {
	local := now.In(EntryZone)

	day, ok := parseDate(date)
	if !ok {
		day = local
	}
	hm, ok := parseTimeOfDay(timeOfDay)
	if !ok {
		hm = local
	}

	ts := time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), 0, 0, EntryZone)
	return ClockStamp{
		Date:      ts.Format(dateLayoutSlash),
		Time:      ts.Format(timeLayoutHM),
		Timestamp: ts,
	}
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{dateLayoutSlash, dateLayoutISO} {
		if t, err := time.ParseInLocation(layout, s, EntryZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimeOfDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{timeLayoutHM, timeLayoutHMS} {
		if t, err := time.ParseInLocation(layout, s, EntryZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
