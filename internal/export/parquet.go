package export

import (
	"fmt"
	"io"
	"math"
	"time"

	parquet "github.com/parquet-go/parquet-go"

	"github.com/i474232898/weather-tables/internal/weather"
)

// StationRecord is one (station, time, variable) cell of a reorganized
// station table. Missing cells keep a nil Value.
type StationRecord struct {
	StationID string   `parquet:"station_id,dict"`
	Time      int64    `parquet:"time_ms"`
	Longitude float64  `parquet:"longitude"`
	Latitude  float64  `parquet:"latitude"`
	Variable  string   `parquet:"variable,dict"`
	Value     *float64 `parquet:"value"`
}

// GridRecord is one (location, timestamp, column) cell of a grid table.
type GridRecord struct {
	Time   int64    `parquet:"time_ms"`
	Lon    float64  `parquet:"lon"`
	Lat    float64  `parquet:"lat"`
	Column string   `parquet:"column,dict"`
	Value  *float64 `parquet:"value"`
}

// StationRecords flattens t into long format, row-major.
func StationRecords(t *weather.ReorganizedTable) []StationRecord {
	out := make([]StationRecord, 0, t.Len()*len(t.Variables))
	for _, row := range t.Rows {
		for i, variable := range t.Variables {
			rec := StationRecord{
				StationID: t.Stations.Label(row.StationID),
				Time:      row.Time.UnixMilli(),
				Longitude: row.Longitude,
				Latitude:  row.Latitude,
				Variable:  variable,
			}
			if v := row.Values[i]; v.Valid {
				f := v.Float64
				rec.Value = &f
			}
			out = append(out, rec)
		}
	}
	return out
}

// GridRecords flattens t into long format, row-major.
func GridRecords(t *weather.GridTable) []GridRecord {
	out := make([]GridRecord, 0, t.Len()*len(t.Columns))
	for i := range t.Len() {
		for _, col := range t.Columns {
			rec := GridRecord{
				Time:   t.Timestamps[i].UnixMilli(),
				Lon:    t.Lons[i],
				Lat:    t.Lats[i],
				Column: col.Name,
			}
			if v := col.Values[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				rec.Value = &v
			}
			out = append(out, rec)
		}
	}
	return out
}

// WriteStationParquet writes t to w as a Parquet file.
func WriteStationParquet(w io.Writer, t *weather.ReorganizedTable) error {
	return writeRows(w, StationRecords(t))
}

// WriteGridParquet writes t to w as a Parquet file.
func WriteGridParquet(w io.Writer, t *weather.GridTable) error {
	return writeRows(w, GridRecords(t))
}

func writeRows[T any](w io.Writer, rows []T) error {
	pw := parquet.NewGenericWriter[T](w)
	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// ReadStationParquet reads the records written by WriteStationParquet.
func ReadStationParquet(r io.ReaderAt, size int64) ([]StationRecord, error) {
	rows, err := parquet.Read[StationRecord](r, size)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}

// RecordTime converts a record timestamp back to UTC time.
func RecordTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
