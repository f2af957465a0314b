package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"
)

// GridResult is an executed grid (dataset) query: a set of locations, their
// time axis and one series per requested variable code.
type GridResult struct {
	TimeIntervals []TimeInterval `json:"timeIntervals"`
	Lats          []float64      `json:"lats"`
	Lons          []float64      `json:"lons"`
	Codes         []CodeSeries   `json:"codes"`
}

// TimeInterval is either an explicit list of time strings or a
// [Start, End) range of epoch seconds stepped by Stride.
type TimeInterval struct {
	Timestrings []string `json:"timestrings,omitempty"`
	Start       int64    `json:"start"`
	End         int64    `json:"end"`
	Stride      int64    `json:"stride"`
}

// CodeSeries carries the flat data of one variable code and aggregation.
type CodeSeries struct {
	Code          int              `json:"code"`
	Aggregation   string           `json:"aggregation"`
	TimeIntervals []SeriesInterval `json:"timeIntervals"`
}

// SeriesInterval holds location-major, time-minor samples.
type SeriesInterval struct {
	Data Series `json:"data"`
}

// Series is a float64 slice whose JSON nulls decode as NaN.
type Series []float64

func (s *Series) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Series, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*s = out
	return nil
}

func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// variableNames is the closed mapping of grid variable codes. Codes outside
// it are reported as ErrUnmappedCode rather than guessed.
var variableNames = map[int]string{
	11:  "E_AIR_TEMPERATURE",
	61:  "E_RAINFALL",
	204: "E_SOLAR",
	52:  "E_RELATIVE_HUMIDITY",
	32:  "E_WIND_SPEED",
	180: "E_WIND_GUST",
	17:  "E_DEWPOINT",
}

var aggregationNames = map[string]string{
	"mean": "daily_avg",
	"sum":  "daily_sum",
	"min":  "daily_min",
	"max":  "daily_max",
}

// VariableName maps a grid variable code to its column prefix.
func VariableName(code int) (string, error) {
	name, ok := variableNames[code]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnmappedCode, code)
	}
	return name, nil
}

// AggregationName maps an aggregation kind to its column infix.
func AggregationName(kind string) (string, error) {
	name, ok := aggregationNames[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnmappedAggregation, kind)
	}
	return name, nil
}

// GridColumnName builds "<VARIABLE>_<aggregation>_dataset".
func GridColumnName(code int, aggregation string) (string, error) {
	variable, err := VariableName(code)
	if err != nil {
		return "", err
	}
	agg, err := AggregationName(aggregation)
	if err != nil {
		return "", err
	}
	return variable + "_" + agg + "_dataset", nil
}

// GridOptions tunes NormalizeGridResult.
type GridOptions struct {
	// Location is used for epoch-second time axes. Defaults to time.Local.
	Location *time.Location
	// SkipUnmapped drops series with an unknown code or aggregation
	// instead of failing.
	SkipUnmapped bool
	Logger       *slog.Logger
}

// maxGridTimesteps bounds the length of an epoch-second time axis.
const maxGridTimesteps = 1 << 22

// GridTimestamps resolves the time axis of an interval. Explicit strings
// win; a "start-end" string collapses to its start.
func GridTimestamps(iv TimeInterval, loc *time.Location) ([]time.Time, error) {
	if len(iv.Timestrings) > 0 {
		out := make([]time.Time, 0, len(iv.Timestrings))
		for _, s := range iv.Timestrings {
			ts, err := parseRangeStart(s)
			if err != nil {
				return nil, err
			}
			out = append(out, ts)
		}
		return out, nil
	}

	count, err := epochSteps(iv)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	out := make([]time.Time, count)
	for i := range out {
		// Start + i*Stride always lies between Start and End, so the
		// wrapping uint64 arithmetic yields the exact int64 result.
		t := int64(uint64(iv.Start) + uint64(i)*uint64(iv.Stride))
		out[i] = time.Unix(t, 0).In(loc)
	}
	return out, nil
}

// epochSteps counts the values of the half-open range [Start, End) stepped
// by Stride without iterating it.
func epochSteps(iv TimeInterval) (int, error) {
	var span, step uint64
	switch {
	case iv.Stride == 0:
		return 0, fmt.Errorf("%w: time interval has zero stride", ErrUpstreamData)
	case iv.Stride > 0:
		if iv.End <= iv.Start {
			return 0, nil
		}
		span, step = uint64(iv.End)-uint64(iv.Start), uint64(iv.Stride)
	default:
		if iv.End >= iv.Start {
			return 0, nil
		}
		span, step = uint64(iv.Start)-uint64(iv.End), -uint64(iv.Stride)
	}
	count := (span-1)/step + 1
	if count > maxGridTimesteps {
		return 0, fmt.Errorf("%w: time interval has %d steps, limit is %d", ErrShapeMismatch, count, maxGridTimesteps)
	}
	return int(count), nil
}

func timestepCount(iv TimeInterval) (int, error) {
	if len(iv.Timestrings) > 0 {
		return len(iv.Timestrings), nil
	}
	return epochSteps(iv)
}

// NormalizeGridResult flattens a grid result into one row per
// (location, timestamp) with one column per code/aggregation pair. Every
// series is checked against the grid shape before any row is built.
func NormalizeGridResult(g *GridResult, opts GridOptions) (*GridTable, error) {
	if g == nil || len(g.TimeIntervals) == 0 {
		return nil, fmt.Errorf("%w: grid result has no time intervals", ErrUpstreamData)
	}
	nTimesteps, err := timestepCount(g.TimeIntervals[0])
	if err != nil {
		return nil, err
	}
	if len(g.Lats) != len(g.Lons) {
		return nil, fmt.Errorf("%w: %d latitudes for %d longitudes", ErrShapeMismatch, len(g.Lats), len(g.Lons))
	}
	nLocations := len(g.Lats)
	if nLocations > 0 && nTimesteps > math.MaxInt/nLocations {
		return nil, fmt.Errorf("%w: %d locations x %d timesteps is too large", ErrShapeMismatch, nLocations, nTimesteps)
	}
	n := nLocations * nTimesteps

	var columns []GridColumn
	for _, code := range g.Codes {
		name, err := GridColumnName(code.Code, code.Aggregation)
		if err != nil {
			if opts.SkipUnmapped && (errors.Is(err, ErrUnmappedCode) || errors.Is(err, ErrUnmappedAggregation)) {
				logger := opts.Logger
				if logger == nil {
					logger = slog.Default()
				}
				logger.Warn("skipping unmapped grid series", "code", code.Code, "aggregation", code.Aggregation)
				continue
			}
			return nil, err
		}
		if len(code.TimeIntervals) == 0 {
			return nil, fmt.Errorf("%w: series %s has no time intervals", ErrUpstreamData, name)
		}
		data := code.TimeIntervals[0].Data
		if len(data) != n {
			return nil, fmt.Errorf("%w: series %s has %d values, grid has %d locations x %d timesteps",
				ErrShapeMismatch, name, len(data), nLocations, nTimesteps)
		}

		column := GridColumn{Name: name, Values: slices.Clone([]float64(data))}
		if idx := slices.IndexFunc(columns, func(c GridColumn) bool { return c.Name == name }); idx >= 0 {
			columns[idx] = column
			continue
		}
		columns = append(columns, column)
	}

	timestamps, err := GridTimestamps(g.TimeIntervals[0], opts.Location)
	if err != nil {
		return nil, err
	}

	table := &GridTable{
		Timestamps: make([]time.Time, 0, n),
		Lons:       make([]float64, 0, n),
		Lats:       make([]float64, 0, n),
		Columns:    columns,
	}
	for i := range nLocations {
		table.Timestamps = append(table.Timestamps, timestamps...)
		for range nTimesteps {
			table.Lons = append(table.Lons, g.Lons[i])
			table.Lats = append(table.Lats, g.Lats[i])
		}
	}
	return table, nil
}
