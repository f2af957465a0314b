package weather

import (
	"encoding/json"
	"math"
	"slices"
	"time"
)

// StationRow is one (station, coordinates, timestamp, offset) key of the
// normalized station table.
type StationRow struct {
	StationID   string
	X           string
	Y           string
	PhenTimeRaw string
	PhenTime    time.Time
	UtcOffset   string

	// Vendor and ID are split from StationID on "-". HasID is false when the
	// identifier had no separator; ExtraIDParts holds anything after a second one.
	Vendor       string
	ID           string
	HasID        bool
	ExtraIDParts []string

	// Values is aligned with StationTable.Variables.
	Values []NullFloat
}

// StationTable is the pivoted, normalized station data.
type StationTable struct {
	Variables []string
	Rows      []StationRow
}

// Len returns the number of rows.
func (t *StationTable) Len() int { return len(t.Rows) }

// Categories is a sorted set of interned labels. A row stores the index of
// its label.
type Categories []string

// NewCategories builds the sorted, de-duplicated label set.
func NewCategories(labels []string) Categories {
	out := slices.Clone(labels)
	slices.Sort(out)
	return Categories(slices.Compact(out))
}

// Code returns the index of label, or -1 when it is not a member.
func (c Categories) Code(label string) int {
	i, found := slices.BinarySearch(c, label)
	if !found {
		return -1
	}
	return i
}

// Label returns the label for code.
func (c Categories) Label(code int) string {
	if code < 0 || code >= len(c) {
		return ""
	}
	return c[code]
}

// ReorganizedRow is one row of the analysis-ready station table.
type ReorganizedRow struct {
	Time      time.Time
	Longitude float64
	Latitude  float64
	StationID int
	Values    []NullFloat
}

// ReorganizedTable is the final station schema: Time, Longitude, Latitude,
// StationID and one column per variable.
type ReorganizedTable struct {
	Variables []string
	Stations  Categories
	Rows      []ReorganizedRow
}

// Len returns the number of rows.
func (t *ReorganizedTable) Len() int { return len(t.Rows) }

// Columns returns the column names in output order.
func (t *ReorganizedTable) Columns() []string {
	cols := []string{"Time", "Longitude", "Latitude", "StationID"}
	return append(cols, t.Variables...)
}

// Column returns the values of a variable with NaN for missing cells, and
// false if the table has no such variable.
func (t *ReorganizedTable) Column(variable string) ([]float64, bool) {
	idx := slices.Index(t.Variables, variable)
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Values[idx].OrNaN()
	}
	return out, true
}

// Records renders the table as one map per row, keyed by column name.
func (t *ReorganizedTable) Records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := map[string]any{
			"Time":      row.Time,
			"Longitude": row.Longitude,
			"Latitude":  row.Latitude,
			"StationID": t.Stations.Label(row.StationID),
		}
		for i, v := range t.Variables {
			rec[v] = row.Values[i]
		}
		out = append(out, rec)
	}
	return out
}

// MarshalJSON writes the table as {"columns": [...], "stations": [...], "rows": [...]}.
func (t *ReorganizedTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Columns  []string         `json:"columns"`
		Stations []string         `json:"stations"`
		Rows     []map[string]any `json:"rows"`
	}{
		Columns:  t.Columns(),
		Stations: t.Stations,
		Rows:     t.Records(),
	})
}

// GridColumn is one variable/aggregation series of a grid table.
type GridColumn struct {
	Name   string
	Values []float64
}

// GridTable holds one row per (location, timestamp), location-major.
type GridTable struct {
	Timestamps []time.Time
	Lons       []float64
	Lats       []float64
	Columns    []GridColumn
}

// Len returns the number of rows.
func (t *GridTable) Len() int { return len(t.Timestamps) }

// Column returns the values of the named column.
func (t *GridTable) Column(name string) ([]float64, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Values, true
		}
	}
	return nil, false
}

// ColumnNames returns timestamp, lon, lat and the data columns in order.
func (t *GridTable) ColumnNames() []string {
	names := []string{"timestamp", "lon", "lat"}
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// MarshalJSON writes the table in column-oriented form; NaN becomes null.
func (t *GridTable) MarshalJSON() ([]byte, error) {
	data := make(map[string][]NullFloat, len(t.Columns))
	for _, c := range t.Columns {
		data[c.Name] = floatsToNull(c.Values)
	}
	return json.Marshal(struct {
		Columns   []string               `json:"columns"`
		Timestamp []time.Time            `json:"timestamp"`
		Lon       []NullFloat            `json:"lon"`
		Lat       []NullFloat            `json:"lat"`
		Data      map[string][]NullFloat `json:"data"`
	}{
		Columns:   t.ColumnNames(),
		Timestamp: t.Timestamps,
		Lon:       floatsToNull(t.Lons),
		Lat:       floatsToNull(t.Lats),
		Data:      data,
	})
}

func floatsToNull(in []float64) []NullFloat {
	out := make([]NullFloat, len(in))
	for i, v := range in {
		if math.IsInf(v, 0) {
			continue
		}
		out[i] = Float(v)
	}
	return out
}
