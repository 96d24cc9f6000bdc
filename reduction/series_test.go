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

package reduction_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction"
	"github.com/GreonXpert/Zero-carbon-backend-sub004/reduction/inmem"
)

var testKey = reduction.SeriesKey{
	ClientID:    "GX01",
	ProjectID:   "GX01-RED-GX01-0001",
	Methodology: reduction.MethodologyM1,
}

func insertEntry(t *testing.T, store *inmem.Store, id string, ts time.Time, net float64) {
	t.Helper()
	err := store.InsertEntry(context.Background(), &reduction.Entry{
		ID:           id,
		ClientID:     testKey.ClientID,
		ProjectID:    testKey.ProjectID,
		Methodology:  testKey.Methodology,
		InputType:    reduction.InputManual,
		Timestamp:    ts,
		NetReduction: net,
	})
	if err != nil {
		t.Fatalf("InsertEntry(%s): %v", id, err)
	}
}

func derivedColumns(series []*reduction.Entry) [][3]float64 {
	out := make([][3]float64, len(series))
	for i, e := range series {
		out[i] = [3]float64{e.CumulativeNetReduction, e.HighNetReduction, e.LowNetReduction}
	}
	return out
}

func TestRecomputeSeriesSingleEntry(t *testing.T) {
	store := inmem.NewStore()
	ts := time.Date(2025, time.August, 14, 11, 0, 0, 0, reduction.EntryZone)
	insertEntry(t, store, "e1", ts, 5)

	series, err := reduction.RecomputeSeries(context.Background(), store, testKey)
	if err != nil {
		t.Fatalf("RecomputeSeries: %v", err)
	}
	want := [][3]float64{{5, 5, 5}}
	if diff := cmp.Diff(want, derivedColumns(series)); diff != "" {
		t.Errorf("derived columns diff (-want +got):\n%s", diff)
	}
}

func TestRecomputeSeriesRetroactiveInsert(t *testing.T) {
	store := inmem.NewStore()
	aug14 := time.Date(2025, time.August, 14, 11, 0, 0, 0, reduction.EntryZone)
	aug13 := time.Date(2025, time.August, 13, 9, 0, 0, 0, reduction.EntryZone)

	insertEntry(t, store, "e1", aug14, 5)
	if _, err := reduction.RecomputeSeries(context.Background(), store, testKey); err != nil {
		t.Fatalf("RecomputeSeries: %v", err)
	}

	// A retroactive insert reorders the series and shifts every
	// derived column after it.
	insertEntry(t, store, "e2", aug13, 2)
	series, err := reduction.RecomputeSeries(context.Background(), store, testKey)
	if err != nil {
		t.Fatalf("RecomputeSeries: %v", err)
	}

	if series[0].ID != "e2" || series[1].ID != "e1" {
		t.Fatalf("series order = [%s, %s], want [e2, e1]", series[0].ID, series[1].ID)
	}
	want := [][3]float64{{2, 2, 2}, {7, 7, 2}}
	if diff := cmp.Diff(want, derivedColumns(series)); diff != "" {
		t.Errorf("derived columns diff (-want +got):\n%s", diff)
	}
}

func TestRecomputeSeriesWatermarks(t *testing.T) {
	store := inmem.NewStore()
	base := time.Date(2025, time.August, 1, 0, 0, 0, 0, reduction.EntryZone)
	nets := []float64{5, -3, 10, -20, 4}
	for i, net := range nets {
		insertEntry(t, store, fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Hour), net)
	}

	series, err := reduction.RecomputeSeries(context.Background(), store, testKey)
	if err != nil {
		t.Fatalf("RecomputeSeries: %v", err)
	}

	// Cumulative identity plus watermark monotonicity.
	sum := 0.0
	for i, e := range series {
		sum = reduction.Round6(sum + e.NetReduction)
		if e.CumulativeNetReduction != sum {
			t.Errorf("cumulative[%d] = %v, want %v", i, e.CumulativeNetReduction, sum)
		}
		if i > 0 {
			if e.HighNetReduction < series[i-1].HighNetReduction {
				t.Errorf("high decreased at %d", i)
			}
			if e.LowNetReduction > series[i-1].LowNetReduction {
				t.Errorf("low increased at %d", i)
			}
		}
		if e.HighNetReduction != reduction.Round6(e.HighNetReduction) ||
			e.LowNetReduction != reduction.Round6(e.LowNetReduction) {
			t.Errorf("watermarks at %d are not round6-closed", i)
		}
	}
	last := series[len(series)-1]
	if last.HighNetReduction != 12 || last.LowNetReduction != -8 {
		t.Errorf("final watermarks = (%v, %v), want (12, -8)", last.HighNetReduction, last.LowNetReduction)
	}
}

func TestRecomputeSeriesIdempotent(t *testing.T) {
	store := inmem.NewStore()
	base := time.Date(2025, time.August, 1, 0, 0, 0, 0, reduction.EntryZone)
	for i, net := range []float64{1.000001, -2.5, 3.333333} {
		insertEntry(t, store, fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Hour), net)
	}

	first, err := reduction.RecomputeSeries(context.Background(), store, testKey)
	if err != nil {
		t.Fatalf("RecomputeSeries: %v", err)
	}
	second, err := reduction.RecomputeSeries(context.Background(), store, testKey)
	if err != nil {
		t.Fatalf("RecomputeSeries: %v", err)
	}
	if diff := cmp.Diff(derivedColumns(first), derivedColumns(second)); diff != "" {
		t.Errorf("back-to-back recomputes diverged (-first +second):\n%s", diff)
	}
}

func TestRecomputeSeriesDeleteRestores(t *testing.T) {
	store := inmem.NewStore()
	base := time.Date(2025, time.August, 1, 0, 0, 0, 0, reduction.EntryZone)
	insertEntry(t, store, "e0", base, 5)
	insertEntry(t, store, "e1", base.Add(2*time.Hour), 7)

	before, err := reduction.RecomputeSeries(context.Background(), store, testKey)
	if err != nil {
		t.Fatalf("RecomputeSeries: %v", err)
	}

	insertEntry(t, store, "mid", base.Add(time.Hour), -100)
	if _, err := reduction.RecomputeSeries(context.Background(), store, testKey); err != nil {
		t.Fatalf("RecomputeSeries: %v", err)
	}
	if err := store.DeleteEntry(context.Background(), testKey, "mid"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}

	after, err := reduction.RecomputeSeries(context.Background(), store, testKey)
	if err != nil {
		t.Fatalf("RecomputeSeries: %v", err)
	}
	if diff := cmp.Diff(derivedColumns(before), derivedColumns(after)); diff != "" {
		t.Errorf("insert+delete left residue (-before +after):\n%s", diff)
	}
}

func TestRecomputeSeriesEmpty(t *testing.T) {
	store := inmem.NewStore()
	series, err := reduction.RecomputeSeries(context.Background(), store, testKey)
	if err != nil {
		t.Fatalf("RecomputeSeries: %v", err)
	}
	if len(series) != 0 {
		t.Errorf("len(series) = %d, want 0", len(series))
	}
}
