package weather

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// coordinateDecimals is the precision Longitude and Latitude are rounded to.
const coordinateDecimals = 3

type rowKey struct {
	sec       int64
	nsec      int
	stationID string
	x         string
	y         string
	utcOffset string
	vendor    string
	id        string
	hasID     bool
}

// ReorganizeStationData turns a normalized station table into the
// analysis-ready schema: Time, Longitude, Latitude, StationID and one
// column per variable. Rows sharing the full key collapse to the first one;
// rows and variables with no data at all are removed.
func ReorganizeStationData(t *StationTable) (*ReorganizedTable, error) {
	if t == nil || len(t.Rows) == 0 {
		return nil, ErrNoData
	}

	seen := make(map[rowKey]struct{}, len(t.Rows))
	rows := make([]StationRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		k := rowKey{
			sec:       row.PhenTime.Unix(),
			nsec:      row.PhenTime.Nanosecond(),
			stationID: row.StationID,
			x:         row.X,
			y:         row.Y,
			utcOffset: row.UtcOffset,
			vendor:    row.Vendor,
			id:        row.ID,
			hasID:     row.HasID,
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if !hasAnyValue(row.Values) {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	keep := make([]int, 0, len(t.Variables))
	for i := range t.Variables {
		for _, row := range rows {
			if row.Values[i].Valid {
				keep = append(keep, i)
				break
			}
		}
	}
	variables := make([]string, len(keep))
	for j, i := range keep {
		variables[j] = t.Variables[i]
	}

	slices.SortStableFunc(rows, func(a, b StationRow) int {
		return cmp.Or(cmp.Compare(a.StationID, b.StationID), a.PhenTime.Compare(b.PhenTime))
	})

	stationIDs := make([]string, len(rows))
	for i, row := range rows {
		stationIDs[i] = row.StationID
	}
	stations := NewCategories(stationIDs)

	out := &ReorganizedTable{
		Variables: variables,
		Stations:  stations,
		Rows:      make([]ReorganizedRow, 0, len(rows)),
	}
	for _, row := range rows {
		if err := validateCalendarDate(row.PhenTimeRaw); err != nil {
			return nil, fmt.Errorf("station %s: %w", row.StationID, err)
		}
		lon, err := parseCoordinate("Longitude", row.X)
		if err != nil {
			return nil, fmt.Errorf("station %s: %w", row.StationID, err)
		}
		lat, err := parseCoordinate("Latitude", row.Y)
		if err != nil {
			return nil, fmt.Errorf("station %s: %w", row.StationID, err)
		}
		values := make([]NullFloat, len(keep))
		for j, i := range keep {
			values[j] = row.Values[i]
		}
		out.Rows = append(out.Rows, ReorganizedRow{
			Time:      row.PhenTime,
			Longitude: lon,
			Latitude:  lat,
			StationID: stations.Code(row.StationID),
			Values:    values,
		})
	}
	return out, nil
}

func hasAnyValue(values []NullFloat) bool {
	for _, v := range values {
		if v.Valid {
			return true
		}
	}
	return false
}

func parseCoordinate(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrParse, name, raw)
	}
	return roundHalfEven(v, coordinateDecimals), nil
}

// roundHalfEven rounds to the given number of decimals, ties to even.
func roundHalfEven(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.RoundToEven(v*scale) / scale
}
