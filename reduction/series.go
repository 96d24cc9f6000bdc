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

import "context"

// RecomputeSeries walks the whole series in chronological order and
// rewrites the cumulative, high and low columns of every row with one
// bulk write. It is idempotent and is the only writer of those
// columns; whoever recomputes last after racing appends leaves the
// unique correct values behind.
//
// High and low are watermarks of the cumulative value, not of the
// per-row net reduction: high is non-decreasing and low non-increasing
// along the series.
func RecomputeSeries(ctx context.Context, repo EntryRepository, key SeriesKey) ([]*Entry, error) {
	series, err := repo.Series(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return series, nil
	}

	updates := make([]DerivedUpdate, 0, len(series))
	cum := 0.0
	var high, low float64
	for i, row := range series {
		cum = Round6(cum + row.NetReduction)
		if i == 0 {
			high, low = cum, cum
		} else {
			if cum > high {
				high = cum
			}
			if cum < low {
				low = cum
			}
		}
		row.CumulativeNetReduction = cum
		row.HighNetReduction = high
		row.LowNetReduction = low
		updates = append(updates, DerivedUpdate{
			EntryID:    row.ID,
			Cumulative: cum,
			High:       high,
			Low:        low,
		})
	}

	if err := repo.BulkUpdateDerived(ctx, key, updates); err != nil {
		return nil, err
	}
	return series, nil
}
