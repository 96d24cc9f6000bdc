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

// Package selfmetrics counts the engine's own ingestion activity via
// OpenTelemetry instruments.
package selfmetrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/GreonXpert/Zero-carbon-backend-sub004"

// Recorder implements the engine's Metrics interface on otel counters.
type Recorder struct {
	saved       metric.Int64Counter
	rejected    metric.Int64Counter
	batchRows   metric.Int64Counter
	batchErrors metric.Int64Counter
}

// NewRecorder builds the instruments on the given provider.
func NewRecorder(provider metric.MeterProvider) (*Recorder, error) {
	meter := provider.Meter(meterName)

	saved, err := meter.Int64Counter("reduction.entries.saved",
		metric.WithDescription("Entries committed, by input type."))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("reduction.entries.rejected",
		metric.WithDescription("Entries rejected before commit, by error kind."))
	if err != nil {
		return nil, err
	}
	batchRows, err := meter.Int64Counter("reduction.batch.rows.saved",
		metric.WithDescription("Rows committed by batch uploads."))
	if err != nil {
		return nil, err
	}
	batchErrors, err := meter.Int64Counter("reduction.batch.rows.failed",
		metric.WithDescription("Rows rejected by batch uploads."))
	if err != nil {
		return nil, err
	}
	return &Recorder{
		saved:       saved,
		rejected:    rejected,
		batchRows:   batchRows,
		batchErrors: batchErrors,
	}, nil
}

func (r *Recorder) EntrySaved(ctx context.Context, inputType string) {
	r.saved.Add(ctx, 1, metric.WithAttributes(attribute.String("input_type", inputType)))
}

func (r *Recorder) EntryRejected(ctx context.Context, kind string) {
	r.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (r *Recorder) BatchProcessed(ctx context.Context, saved, failed int) {
	r.batchRows.Add(ctx, int64(saved))
	r.batchErrors.Add(ctx, int64(failed))
}

// NewManualProvider returns a provider whose reader is collected on
// demand; tests and the health endpoint read it directly.
func NewManualProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return provider, reader
}
