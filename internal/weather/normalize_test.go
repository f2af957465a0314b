package weather

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeResponse(t *testing.T, body string) StationResponse {
	t.Helper()
	var resp StationResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	return resp
}

func TestNormalizeStationDataDropsMissingSample(t *testing.T) {
	resp := decodeResponse(t, `[{
		"timeSequence": ["20230101", "20230102"],
		"dataset": [{"stationID": "ACME-01", "X": "8.1", "Y": "47.2", "UtcOffset": "+01:00",
			"variableID": 11, "values": [10.5, "NA"]}]
	}]`)

	table, err := NormalizeStationData(resp, NormalizeOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", table.Len())
	}
	row := table.Rows[0]
	if row.Vendor != "ACME" || row.ID != "01" || !row.HasID {
		t.Fatalf("expected vendor ACME and id 01, got %q %q (hasID=%v)", row.Vendor, row.ID, row.HasID)
	}
	if len(table.Variables) != 1 || table.Variables[0] != "11" {
		t.Fatalf("expected variables [11], got %v", table.Variables)
	}
	if !row.Values[0].Valid || row.Values[0].Float64 != 10.5 {
		t.Fatalf("expected value 10.5, got %+v", row.Values[0])
	}
	if row.PhenTime.Format("20060102") != "20230101" {
		t.Fatalf("expected phenTime 20230101, got %v", row.PhenTime)
	}
}

func TestNormalizeStationDataRowCountMatchesSamples(t *testing.T) {
	resp := decodeResponse(t, `[
		{"timeSequence": ["20230101", "20230102", "20230103"],
		 "dataset": [
			{"stationID": "ACME-01", "X": "8.1", "Y": "47.2", "UtcOffset": "0", "variableID": "11", "values": [1, null, "3.5"]},
			{"stationID": "ACME-02", "X": "8.3", "Y": "47.4", "UtcOffset": "0", "variableID": "11", "values": ["NA", 2, 4]}
		 ]},
		{"timeSequence": ["20230104"],
		 "dataset": [
			{"stationID": "ACME-01", "X": "8.1", "Y": "47.2", "UtcOffset": "0", "variableID": "11", "values": [7]}
		 ]}
	]`)

	samples, err := ExplodeSamples(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(samples))
	}

	table, err := NormalizeStationData(resp, NormalizeOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != len(samples) {
		t.Fatalf("expected %d rows, got %d", len(samples), table.Len())
	}

	// Sorted by station, then time.
	want := []struct{ station, day string }{
		{"ACME-01", "20230101"},
		{"ACME-01", "20230103"},
		{"ACME-01", "20230104"},
		{"ACME-02", "20230102"},
		{"ACME-02", "20230103"},
	}
	for i, w := range want {
		row := table.Rows[i]
		if row.StationID != w.station || row.PhenTime.Format("20060102") != w.day {
			t.Fatalf("row %d: expected %s@%s, got %s@%s", i, w.station, w.day, row.StationID, row.PhenTime.Format("20060102"))
		}
	}
}

func TestNormalizeStationDataPivotsVariables(t *testing.T) {
	resp := decodeResponse(t, `[{
		"timeSequence": ["20230101T0000", "20230101T0100"],
		"dataset": [
			{"stationID": "ACME-01", "X": "8", "Y": "47", "UtcOffset": "0", "variableID": "61", "values": [0.2, 0.0]},
			{"stationID": "ACME-01", "X": "8", "Y": "47", "UtcOffset": "0", "variableID": "11", "values": [5, 6]},
			{"stationID": "ACME-01", "X": "8", "Y": "47", "UtcOffset": "0", "variableID": "11", "values": [7, "NA"]}
		]
	}]`)

	table, err := NormalizeStationData(resp, NormalizeOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Variables) != 2 || table.Variables[0] != "11" || table.Variables[1] != "61" {
		t.Fatalf("expected variables [11 61], got %v", table.Variables)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.Len())
	}
	// Duplicate (key, variable) cells are averaged.
	if got := table.Rows[0].Values[0].Float64; got != 6 {
		t.Fatalf("expected mean 6 for first hour, got %v", got)
	}
	if got := table.Rows[1].Values[0].Float64; got != 6 {
		t.Fatalf("expected 6 for second hour, got %v", got)
	}
	if got := table.Rows[1].Values[1]; !got.Valid || got.Float64 != 0 {
		t.Fatalf("expected rainfall 0 for second hour, got %+v", got)
	}
}

func TestNormalizeStationDataErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		opts NormalizeOptions
		want error
	}{
		{
			name: "empty response",
			body: `[]`,
			want: ErrNoData,
		},
		{
			name: "only missing samples",
			body: `[{"timeSequence": ["20230101"], "dataset": [{"stationID": "A-1", "X": "1", "Y": "2", "variableID": "11", "values": ["NA"]}]}]`,
			want: ErrNoData,
		},
		{
			name: "non-numeric value",
			body: `[{"timeSequence": ["20230101"], "dataset": [{"stationID": "A-1", "X": "1", "Y": "2", "variableID": "11", "values": ["warm"]}]}]`,
			want: ErrParse,
		},
		{
			name: "length mismatch",
			body: `[{"timeSequence": ["20230101", "20230102"], "dataset": [{"stationID": "A-1", "X": "1", "Y": "2", "variableID": "11", "values": [1]}]}]`,
			want: ErrShapeMismatch,
		},
		{
			name: "missing dataset",
			body: `[{"timeSequence": ["20230101"]}]`,
			want: ErrUpstreamData,
		},
		{
			name: "missing station id",
			body: `[{"timeSequence": ["20230101"], "dataset": [{"X": "1", "Y": "2", "variableID": "11", "values": [1]}]}]`,
			want: ErrUpstreamData,
		},
		{
			name: "unparseable timestamp",
			body: `[{"timeSequence": ["yesterday"], "dataset": [{"stationID": "A-1", "X": "1", "Y": "2", "variableID": "11", "values": [1]}]}]`,
			want: ErrParse,
		},
		{
			name: "strict identifiers",
			body: `[{"timeSequence": ["20230101"], "dataset": [{"stationID": "ACME", "X": "1", "Y": "2", "variableID": "11", "values": [1]}]}]`,
			opts: NormalizeOptions{StrictIdentifiers: true},
			want: ErrMalformedIdentifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Logger = quietLogger()
			_, err := NormalizeStationData(decodeResponse(t, tt.body), tt.opts)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSplitStationID(t *testing.T) {
	tests := []struct {
		in       string
		vendor   string
		id       string
		hasID    bool
		extra    int
		wellForm bool
	}{
		{in: "ACME-01", vendor: "ACME", id: "01", hasID: true, wellForm: true},
		{in: "ACME", vendor: "ACME"},
		{in: "ACME-01-B-2", vendor: "ACME", id: "01", hasID: true, extra: 2},
		{in: "-7", vendor: "", id: "7", hasID: true, wellForm: true},
	}

	for _, tt := range tests {
		got := SplitStationID(tt.in)
		if got.Vendor != tt.vendor || got.ID != tt.id || got.HasID != tt.hasID || len(got.Extra) != tt.extra {
			t.Fatalf("%q: unexpected split %+v", tt.in, got)
		}
		if got.Wellformed() != tt.wellForm {
			t.Fatalf("%q: expected wellformed=%v", tt.in, tt.wellForm)
		}
	}
}

func TestNormalizeStationDataKeepsMultiHyphenIDs(t *testing.T) {
	resp := decodeResponse(t, `[{"timeSequence": ["20230101"], "dataset": [
		{"stationID": "ACME-01-B", "X": "1", "Y": "2", "variableID": "11", "values": [1]}
	]}]`)

	table, err := NormalizeStationData(resp, NormalizeOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := table.Rows[0]
	if row.Vendor != "ACME" || row.ID != "01" || len(row.ExtraIDParts) != 1 || row.ExtraIDParts[0] != "B" {
		t.Fatalf("unexpected identifier split: %+v", row)
	}
}

func TestNormalizeStationDataNullKeyComponents(t *testing.T) {
	resp := decodeResponse(t, `[
		{"timeSequence": ["20230101"],
		 "dataset": [
			{"stationID": "ACME-01", "X": "8.1", "Y": "47.2", "UtcOffset": null, "variableID": "11", "values": [1.5]},
			{"stationID": "ACME-02", "X": null, "Y": "47.4", "UtcOffset": "0", "variableID": "11", "values": [2.5]}
		 ]}
	]`)

	table, err := NormalizeStationData(resp, NormalizeOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected rows with null key parts to be kept, got %d rows", table.Len())
	}
	first := table.Rows[0]
	if first.StationID != "ACME-01" || first.UtcOffset != "" || first.Values[0].Float64 != 1.5 {
		t.Fatalf("expected ACME-01 with empty UtcOffset, got %+v", first)
	}
	if table.Rows[1].X != "" {
		t.Fatalf("expected empty X for null longitude, got %q", table.Rows[1].X)
	}

	// A missing coordinate cannot be placed in the analysis schema.
	if _, err := ReorganizeStationData(table); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse for null coordinate, got %v", err)
	}
}
