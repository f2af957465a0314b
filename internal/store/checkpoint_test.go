package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/i474232898/weather-tables/internal/metrics"
	"github.com/i474232898/weather-tables/internal/weather"
)

func TestCheckpointerRoundTrip(t *testing.T) {
	ctx := context.Background()
	cp := NewCheckpointer(NewMemoryStore(0), "bucket", "checkpoints", metrics.NewCollector("test"))

	table := &weather.ReorganizedTable{
		Variables: []string{"11", "61"},
		Stations:  weather.NewCategories([]string{"ACME-02", "ACME-01"}),
		Rows: []weather.ReorganizedRow{
			{
				Time:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				Longitude: 8.123,
				Latitude:  47.5,
				StationID: 0,
				Values:    []weather.NullFloat{weather.Float(10.5), {}},
			},
			{
				Time:      time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
				Longitude: 9,
				Latitude:  46,
				StationID: 1,
				Values:    []weather.NullFloat{{}, weather.Float(0.2)},
			},
		},
	}

	if err := cp.Save(ctx, "stations_20230102", table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got weather.ReorganizedTable
	if err := cp.Load(ctx, "stations_20230102", &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(&got, table) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", table, &got)
	}
}

func TestCheckpointerRoundTripRawResponse(t *testing.T) {
	ctx := context.Background()
	cp := NewCheckpointer(NewMemoryStore(0), "bucket", "raw", nil)

	resp := weather.StationResponse{{
		TimeSequence: []string{"20230101", "20230102"},
		Dataset: []weather.StationSeries{{
			StationID:  "ACME-01",
			X:          "8.1",
			Y:          "47.2",
			UtcOffset:  "0",
			VariableID: "11",
			Values:     []weather.RawValue{weather.NumberValue(10.5), weather.NAValue()},
		}},
	}}

	if err := cp.Save(ctx, "raw_20230102", resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got weather.StationResponse
	if err := cp.Load(ctx, "raw_20230102", &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, resp) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", resp, got)
	}
}

func TestCheckpointerMissingObject(t *testing.T) {
	cp := NewCheckpointer(NewMemoryStore(0), "bucket", "checkpoints", nil)

	var got weather.ReorganizedTable
	err := cp.Load(context.Background(), "missing", &got)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckpointerDecodeMismatch(t *testing.T) {
	ctx := context.Background()
	cp := NewCheckpointer(NewMemoryStore(0), "bucket", "checkpoints", nil)

	if err := cp.Save(ctx, "number", 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got weather.ReorganizedTable
	if err := cp.Load(ctx, "number", &got); !errors.Is(err, weather.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
