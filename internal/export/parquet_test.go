package export

import (
	"bytes"
	"math"
	"testing"
	"time"

	parquet "github.com/parquet-go/parquet-go"

	"github.com/i474232898/weather-tables/internal/weather"
)

func sampleTable() *weather.ReorganizedTable {
	return &weather.ReorganizedTable{
		Variables: []string{"11", "61"},
		Stations:  weather.NewCategories([]string{"ACME-01", "ACME-02"}),
		Rows: []weather.ReorganizedRow{
			{
				Time:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				Longitude: 8.123,
				Latitude:  47.5,
				StationID: 0,
				Values:    []weather.NullFloat{weather.Float(10.5), {}},
			},
			{
				Time:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				Longitude: 9,
				Latitude:  46,
				StationID: 1,
				Values:    []weather.NullFloat{weather.Float(-2), weather.Float(0.4)},
			},
		},
	}
}

func TestStationParquetRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStationParquet(&buf, sampleTable()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := ReadStationParquet(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}

	first := records[0]
	if first.StationID != "ACME-01" || first.Variable != "11" || first.Value == nil || *first.Value != 10.5 {
		t.Fatalf("unexpected first record %+v", first)
	}
	if !RecordTime(first.Time).Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", RecordTime(first.Time))
	}
	if records[1].Value != nil {
		t.Fatalf("expected missing rainfall to stay null, got %v", *records[1].Value)
	}
	if records[3].StationID != "ACME-02" || *records[3].Value != 0.4 {
		t.Fatalf("unexpected last record %+v", records[3])
	}
}

func TestGridParquet(t *testing.T) {
	table := &weather.GridTable{
		Timestamps: []time.Time{time.Unix(0, 0), time.Unix(3600, 0)},
		Lons:       []float64{8, 8},
		Lats:       []float64{47, 47},
		Columns: []weather.GridColumn{
			{Name: "E_AIR_TEMPERATURE_daily_avg_dataset", Values: []float64{1, math.NaN()}},
		},
	}

	var buf bytes.Buffer
	if err := WriteGridParquet(&buf, table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := parquet.Read[GridRecord](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Value == nil || *rows[0].Value != 1 || rows[1].Value != nil {
		t.Fatalf("unexpected values %+v %+v", rows[0], rows[1])
	}
	if rows[1].Time != 3600*1000 {
		t.Fatalf("expected time 3600000, got %d", rows[1].Time)
	}
}
