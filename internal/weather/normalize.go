package weather

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Sample is one (value, phenTime) pair exploded out of a station series.
type Sample struct {
	StationID  string
	X          string
	Y          string
	UtcOffset  string
	VariableID string
	PhenTime   string
	Value      float64
}

// NormalizeOptions tunes NormalizeStationData.
type NormalizeOptions struct {
	// StrictIdentifiers rejects station IDs that do not split into exactly
	// vendor and id. By default they are kept and logged.
	StrictIdentifiers bool
	Logger            *slog.Logger
}

func (o NormalizeOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// ExplodeSamples attaches each block's timeSequence to its series and returns
// one sample per position. "NA" and null values are dropped; the rest must
// be numeric.
func ExplodeSamples(resp StationResponse) ([]Sample, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}

	samples := make([]Sample, 0, resp.SeriesCount())
	for _, block := range resp {
		for _, series := range block.Dataset {
			for i, raw := range series.Values {
				if raw.IsSentinel() || raw.IsNull() {
					continue
				}
				v, err := raw.Float()
				if err != nil {
					return nil, fmt.Errorf("station %s variable %s at %s: %w",
						series.StationID, series.VariableID, block.TimeSequence[i], err)
				}
				samples = append(samples, Sample{
					StationID:  series.StationID.String(),
					X:          series.X.String(),
					Y:          series.Y.String(),
					UtcOffset:  series.UtcOffset.String(),
					VariableID: series.VariableID.String(),
					PhenTime:   block.TimeSequence[i],
					Value:      v,
				})
			}
		}
	}
	return samples, nil
}

type pivotKey struct {
	stationID string
	x         string
	y         string
	phenTime  string
	utcOffset string
}

func comparePivotKeys(a, b pivotKey) int {
	return cmp.Or(
		cmp.Compare(a.stationID, b.stationID),
		cmp.Compare(a.x, b.x),
		cmp.Compare(a.y, b.y),
		cmp.Compare(a.phenTime, b.phenTime),
		cmp.Compare(a.utcOffset, b.utcOffset),
	)
}

type meanAcc struct {
	sum float64
	n   int
}

// NormalizeStationData flattens a raw station response into one row per
// (station, X, Y, phenTime, UtcOffset) with a column per variableID.
// Repeated samples for the same key and variable are averaged.
func NormalizeStationData(resp StationResponse, opts NormalizeOptions) (*StationTable, error) {
	samples, err := ExplodeSamples(resp)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrNoData
	}

	cells := make(map[pivotKey]map[string]*meanAcc)
	variableSet := make(map[string]struct{})
	for _, s := range samples {
		if math.IsNaN(s.Value) {
			continue
		}
		k := pivotKey{s.StationID, s.X, s.Y, s.PhenTime, s.UtcOffset}
		byVar, ok := cells[k]
		if !ok {
			byVar = make(map[string]*meanAcc)
			cells[k] = byVar
		}
		acc, ok := byVar[s.VariableID]
		if !ok {
			acc = &meanAcc{}
			byVar[s.VariableID] = acc
		}
		acc.sum += s.Value
		acc.n++
		variableSet[s.VariableID] = struct{}{}
	}
	if len(cells) == 0 {
		return nil, ErrNoData
	}

	variables := make([]string, 0, len(variableSet))
	for v := range variableSet {
		variables = append(variables, v)
	}
	slices.SortFunc(variables, compareVariableIDs)

	keys := make([]pivotKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, comparePivotKeys)

	rows := make([]StationRow, 0, len(keys))
	for _, k := range keys {
		ts, err := ParseTimestamp(k.phenTime)
		if err != nil {
			return nil, fmt.Errorf("station %s: %w", k.stationID, err)
		}
		values := make([]NullFloat, len(variables))
		for i, v := range variables {
			if acc, ok := cells[k][v]; ok {
				values[i] = NullFloat{Float64: acc.sum / float64(acc.n), Valid: true}
			}
		}
		rows = append(rows, StationRow{
			StationID:   k.stationID,
			X:           k.x,
			Y:           k.y,
			PhenTimeRaw: k.phenTime,
			PhenTime:    ts,
			UtcOffset:   k.utcOffset,
			Values:      values,
		})
	}

	slices.SortStableFunc(rows, func(a, b StationRow) int {
		return cmp.Or(cmp.Compare(a.StationID, b.StationID), a.PhenTime.Compare(b.PhenTime))
	})

	flagged := make(map[string]struct{})
	for i := range rows {
		row := &rows[i]
		parts := SplitStationID(row.StationID)
		row.Vendor, row.ID, row.HasID, row.ExtraIDParts = parts.Vendor, parts.ID, parts.HasID, parts.Extra
		if parts.Wellformed() {
			continue
		}
		if opts.StrictIdentifiers {
			return nil, fmt.Errorf("%w: %q", ErrMalformedIdentifier, row.StationID)
		}
		if _, seen := flagged[row.StationID]; !seen {
			flagged[row.StationID] = struct{}{}
			opts.logger().Warn("station identifier does not split into vendor and id",
				"station_id", row.StationID, "separators", strings.Count(row.StationID, "-"))
		}
	}

	return &StationTable{Variables: variables, Rows: rows}, nil
}

// StationIDParts is a station identifier split on "-".
type StationIDParts struct {
	Vendor string
	ID     string
	HasID  bool
	Extra  []string
}

// Wellformed reports whether the identifier had exactly one separator.
func (p StationIDParts) Wellformed() bool {
	return p.HasID && len(p.Extra) == 0
}

// SplitStationID splits "<vendor>-<id>". It never fails: a missing separator
// leaves HasID false and further separators land in Extra.
func SplitStationID(stationID string) StationIDParts {
	parts := strings.Split(stationID, "-")
	out := StationIDParts{Vendor: parts[0]}
	if len(parts) > 1 {
		out.ID = parts[1]
		out.HasID = true
	}
	if len(parts) > 2 {
		out.Extra = parts[2:]
	}
	return out
}

// compareVariableIDs orders numeric IDs numerically and before textual ones.
func compareVariableIDs(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		return cmp.Or(cmp.Compare(fa, fb), cmp.Compare(a, b))
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
